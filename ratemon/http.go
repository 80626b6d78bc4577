package ratemon

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/nuclab/mcfd16/generichttp"
	"github.com/nuclab/mcfd16/mesytec"
	"github.com/nuclab/mcfd16/server"
)

// ChannelHistory is the JSON form of one channel of a History
type ChannelHistory struct {
	Channel mesytec.Channel `json:"channel"`
	Name    string          `json:"name"`
	KHz     []float64       `json:"khz"`
}

// HTTPWrapper exposes a running Session over HTTP
type HTTPWrapper struct {
	s *Session

	// RouteTable maps routes to http handlers
	RouteTable server.RouteTable
}

// NewHTTPWrapper returns a new HTTP wrapper with the route table pre-configured
func NewHTTPWrapper(s *Session) HTTPWrapper {
	w := HTTPWrapper{s: s}
	rt := server.RouteTable{
		{Method: http.MethodGet, Path: "/rates"}:       w.Rates,
		{Method: http.MethodGet, Path: "/rates/{ch}"}:  w.ChannelRates,
		{Method: http.MethodGet, Path: "/latest/{ch}"}: w.Latest,
		{Method: http.MethodGet, Path: "/sequence"}:    generichttp.GetInt(func() (int, error) { return s.Poller.Seq(), nil }),
		{Method: http.MethodGet, Path: "/stats"}:       w.Stats,
		{Method: http.MethodGet, Path: "/stamps"}:      w.Stamps,
		{Method: http.MethodGet, Path: "/log"}:         w.LogFile,
		{Method: http.MethodGet, Path: "/version"}:     generichttp.GetString(func() (string, error) { return s.Version(), nil }),
	}
	w.RouteTable = rt
	return w
}

// RT satisfies server.HTTPer
func (h HTTPWrapper) RT() server.RouteTable {
	return h.RouteTable
}

var errBadChannel = errors.New("channel must be an integer in [0,19]")

func channelParam(r *http.Request) (mesytec.Channel, error) {
	i, err := strconv.Atoi(chi.URLParam(r, "ch"))
	if err != nil || !mesytec.Channel(i).Valid() {
		return 0, errBadChannel
	}
	return mesytec.Channel(i), nil
}

func (h HTTPWrapper) channel(ch mesytec.Channel) ChannelHistory {
	return ChannelHistory{Channel: ch, Name: ch.String(), KHz: h.s.History.Channel(ch)}
}

// Rates returns the history of every channel, oldest value first
func (h HTTPWrapper) Rates(w http.ResponseWriter, r *http.Request) {
	snap := h.s.History.Snapshot()
	out := make([]ChannelHistory, len(snap))
	for i, v := range snap {
		ch := mesytec.Channel(i)
		out[i] = ChannelHistory{Channel: ch, Name: ch.String(), KHz: v}
	}
	server.ReplyJSON(w, out)
}

// ChannelRates returns the history of the channel in the URL
func (h HTTPWrapper) ChannelRates(w http.ResponseWriter, r *http.Request) {
	ch, err := channelParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	server.ReplyJSON(w, h.channel(ch))
}

// Latest returns the newest rate of the channel in the URL as {"f64": value}
func (h HTTPWrapper) Latest(w http.ResponseWriter, r *http.Request) {
	ch, err := channelParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f, ok := h.s.History.Latest(ch)
	if !ok {
		http.Error(w, "no rate recorded yet for "+ch.String(), http.StatusNotFound)
		return
	}
	generichttp.GetFloat(func() (float64, error) { return f, nil })(w, r)
}

// Stats returns the poll statistics
func (h HTTPWrapper) Stats(w http.ResponseWriter, r *http.Request) {
	server.ReplyJSON(w, h.s.Poller.Stats())
}

// Stamps returns the time of every committed cycle
func (h HTTPWrapper) Stamps(w http.ResponseWriter, r *http.Request) {
	server.ReplyJSON(w, h.s.Stamps())
}

// LogFile serves the session log
func (h HTTPWrapper) LogFile(w http.ResponseWriter, r *http.Request) {
	path := h.s.Log.Path()
	if path == "" {
		http.Error(w, "session log is not a file", http.StatusNotFound)
		return
	}
	server.ReplyWithFile(w, r, filepath.Base(path), filepath.Dir(path))
}
