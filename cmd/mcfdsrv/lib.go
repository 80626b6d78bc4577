package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nuclab/mcfd16/comm"
	"github.com/nuclab/mcfd16/generichttp"
	"github.com/nuclab/mcfd16/ratemon"
	"github.com/nuclab/mcfd16/server"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/peterh/liner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds everything mcfdsrv needs to run a session.  It is populated
// from defaults, then mcfdsrv.yml.
type Config struct {
	// Device is the serial port the module is attached to, e.g. /dev/ttyUSB0.
	// If empty it is asked for on the terminal.
	Device string `koanf:"Device" yaml:"Device"`

	// Baud is the serial line rate
	Baud int `koanf:"Baud" yaml:"Baud"`

	// ReadTimeout bounds every line read from the module
	ReadTimeout time.Duration `koanf:"ReadTimeout" yaml:"ReadTimeout"`

	// CommandRate limits commands per second, 0 for no limit
	CommandRate float64 `koanf:"CommandRate" yaml:"CommandRate"`

	// Ticks is the number of scheduler ticks, a cycle is read on every other
	// tick.  If zero it is asked for on the terminal.
	Ticks int `koanf:"Ticks" yaml:"Ticks"`

	// Interval is the time between ticks
	Interval time.Duration `koanf:"Interval" yaml:"Interval"`

	// History is the number of values kept per channel for the HTTP read-out
	History int `koanf:"History" yaml:"History"`

	// LogPath is the tab separated rate log, truncated at session start
	LogPath string `koanf:"LogPath" yaml:"LogPath"`

	// ClearLines and ResponseLines are the number of lines read after
	// a setter and after a query
	ClearLines    int `koanf:"ClearLines" yaml:"ClearLines"`
	ResponseLines int `koanf:"ResponseLines" yaml:"ResponseLines"`

	// Addr is the address to serve HTTP on, empty disables the server
	Addr string `koanf:"Addr" yaml:"Addr"`

	// Endpoint is the URL stem the session routes are served under
	Endpoint string `koanf:"Endpoint" yaml:"Endpoint"`

	// LogFile, if not empty, receives a copy of the diagnostic log and is
	// rotated
	LogFile string `koanf:"LogFile" yaml:"LogFile"`

	// Verbose enables debug logging of every line on the wire
	Verbose bool `koanf:"Verbose" yaml:"Verbose"`
}

// Comm returns the transport configuration
func (c Config) Comm() comm.Config {
	return comm.Config{Baud: c.Baud, ReadTimeout: c.ReadTimeout, CommandRate: c.CommandRate}
}

// Session returns the session configuration
func (c Config) Session() ratemon.Config {
	return ratemon.Config{
		Ticks:         c.Ticks,
		Interval:      c.Interval,
		History:       c.History,
		LogPath:       c.LogPath,
		ClearLines:    c.ClearLines,
		ResponseLines: c.ResponseLines,
	}
}

// setupLogging configures logrus from c
func setupLogging(c Config) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if c.Verbose {
		log.SetLevel(log.DebugLevel)
	}
	if c.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}))
	}
}

// prompter asks for a line of input
type prompter interface {
	Prompt(string) (string, error)
}

// fillInteractive asks for the device and tick count if they are not set
func fillInteractive(p prompter, c *Config) error {
	for c.Device == "" {
		s, err := p.Prompt("User device? ")
		if err != nil {
			return err
		}
		c.Device = strings.TrimSpace(s)
	}
	for c.Ticks <= 0 {
		s, err := p.Prompt("How many times would you like to record? ")
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || n <= 0 {
			fmt.Println("please enter a positive whole number")
			continue
		}
		c.Ticks = n
	}
	return nil
}

// prompt runs fillInteractive on the terminal
func prompt(c *Config) error {
	if c.Device != "" && c.Ticks > 0 {
		return nil
	}
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	return fillInteractive(line, c)
}

// BuildMux builds the root router: the session routes mounted at the
// configured endpoint, prometheus metrics at /metrics and a list of every
// route at /endpoints.
func BuildMux(c Config, s *ratemon.Session) chi.Router {
	root := chi.NewRouter()
	root.Use(middleware.Logger)

	httper := ratemon.NewHTTPWrapper(s)
	stem := generichttp.SubMuxSanitize(c.Endpoint)
	r := chi.NewRouter()
	httper.RT().Bind(r)
	root.Mount(stem, r)

	reg := prometheus.NewRegistry()
	reg.MustRegister(ratemon.NewCollector(s))
	root.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	supergraph := map[string][]string{stem: httper.RT().Endpoints()}
	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		server.ReplyJSON(w, supergraph)
	})
	return root
}
