package server_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi"
	"github.com/nuclab/mcfd16/server"
)

func TestRouteTableBind(t *testing.T) {
	rt := server.RouteTable{
		{Method: http.MethodGet, Path: "/b"}: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		},
		{Method: http.MethodGet, Path: "/a"}: func(w http.ResponseWriter, r *http.Request) {},
	}
	eps := rt.Endpoints()
	if len(eps) != 2 || eps[0] != "GET /a" || eps[1] != "GET /b" {
		t.Errorf("expected sorted endpoints, got %v", eps)
	}
	r := chi.NewRouter()
	rt.Bind(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/b", nil))
	if w.Code != http.StatusTeapot {
		t.Errorf("expected bound handler to run, got %d", w.Code)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/b", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for an unbound method, got %d", w.Code)
	}
}

func TestReplyWithFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "rates.tsv"), []byte("1\t2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w := httptest.NewRecorder()
	server.ReplyWithFile(w, httptest.NewRequest(http.MethodGet, "/log", nil), "rates.tsv", dir)
	if w.Code != http.StatusOK || w.Body.String() != "1\t2\n" {
		t.Errorf("expected file contents, got %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	server.ReplyWithFile(w, httptest.NewRequest(http.MethodGet, "/log", nil), "missing.tsv", dir)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a missing file, got %d", w.Code)
	}
}

func TestReplyJSON(t *testing.T) {
	w := httptest.NewRecorder()
	server.ReplyJSON(w, server.FloatT{F64: 1.5})
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected json content type, got %s", ct)
	}
	if w.Body.String() != "{\"f64\":1.5}\n" {
		t.Errorf("unexpected body %q", w.Body.String())
	}
}
