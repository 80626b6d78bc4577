// Package server contains misc server utilities.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-chi/chi"
	log "github.com/sirupsen/logrus"
)

// FloatT is a struct with a single float64 field, F64 with json tag f64
type FloatT struct {
	F64 float64 `json:"f64"`
}

// IntT is a struct with a single int field, Int with json tag int
type IntT struct {
	Int int `json:"int"`
}

// StrT is a struct with a single string field, Str with json tag str
type StrT struct {
	Str string `json:"str"`
}

// ReplyJSON encodes v as the JSON body of a 200 response
func ReplyJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		fstr := fmt.Sprintf("error encoding data to json %q", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
	}
}

// ReplyWithFile replies to the client request by serving the given file name
func ReplyWithFile(w http.ResponseWriter, r *http.Request, fn string, fldr string) {
	filePath, err := filepath.Abs(filepath.Join(fldr, fn))
	if err != nil {
		fstr := fmt.Sprintf("unable to compute abspath of file %s %s %s", fldr, fn, err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
		return
	}

	f, err := os.Open(filePath)
	if err != nil {
		fstr := fmt.Sprintf("source file missing %s", filePath)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusNotFound)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		fstr := fmt.Sprintf("error retrieving source file stats %s", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusNotFound)
		return
	}
	// read some stuff to set the headers appropriately
	http.ServeContent(w, r, fn, stat.ModTime(), f)
}

// Route is a method and a chi path pattern
type Route struct {
	Method string
	Path   string
}

func (r Route) String() string {
	return r.Method + " " + r.Path
}

// RouteTable maps URL endpoints to handlers
type RouteTable map[Route]http.HandlerFunc

// Endpoints lists the endpoints in a RouteTable (the keys), sorted
func (rt RouteTable) Endpoints() []string {
	routes := make([]string, 0, len(rt))
	for k := range rt {
		routes = append(routes, k.String())
	}
	sort.Strings(routes)
	return routes
}

// Bind binds every route in the table to r
func (rt RouteTable) Bind(r chi.Router) {
	for k, v := range rt {
		r.Method(k.Method, k.Path, v)
	}
}

// HTTPer is an object which exposes a table of routes
type HTTPer interface {
	RT() RouteTable
}
