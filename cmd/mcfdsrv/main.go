package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/nuclab/mcfd16/comm"
	"github.com/nuclab/mcfd16/mesytec"
	"github.com/nuclab/mcfd16/ratemon"
	log "github.com/sirupsen/logrus"
	"github.com/theckman/yacspin"
	"golang.org/x/sync/errgroup"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "mcfdsrv.yml"
	k              = koanf.New(".")
)

func defaults() Config {
	cc := comm.DefaultConfig()
	return Config{
		Baud:          cc.Baud,
		ReadTimeout:   cc.ReadTimeout,
		Interval:      ratemon.DefaultInterval,
		History:       ratemon.DefaultCapacity,
		LogPath:       "mcfd.txt",
		ClearLines:    mesytec.DefaultLines,
		ResponseLines: mesytec.DefaultLines,
		Endpoint:      "mcfd",
	}
}

func setupconfig() {
	k.Load(structs.Provider(defaults(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func loadConfig() Config {
	c := Config{}
	if err := k.Unmarshal("", &c); err != nil {
		log.Fatal(err)
	}
	return c
}

func root() {
	str := `mcfdsrv configures a Mesytec MCFD-16 discriminator and records its count
rates to a tab separated file, optionally serving them over HTTP while it runs.

Usage:
	mcfdsrv <command>

Commands:
	run
	init
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `mcfdsrv is amenable to configuration via its .yaml file, mcfdsrv.yml in the
working directory.  For a primer on YAML, see https://yaml.org/start.html
Run "mcfdsrv mkconf" to write one holding the defaults.

run connects to Device, checks the firmware version, turns the pulser off,
sends the initialization script and then reads all 20 rate channels every
other tick for Ticks ticks, Interval apart.  Each complete read is one line
of LogPath, channels 0-15, the three trigger rates and the sum, in kHz.
If Device or Ticks is not configured it is asked for.

init only sends the initialization script.

With Addr set, the routes below are served under /<Endpoint>:
	GET /rates          history of every channel, oldest first
	GET /rates/{ch}     history of one channel
	GET /latest/{ch}    {"f64": newest rate}
	GET /sequence       {"int": last committed cycle}
	GET /stats          committed and discarded cycles
	GET /stamps         time of every committed cycle
	GET /log            the rate log
	GET /version        {"str": firmware line}
as well as /metrics (prometheus) and /endpoints.

Ctrl-C stops the recording at the next tick; the log is always written.`
	fmt.Println(str)
}

func mkconf() {
	c := loadConfig()
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := loadConfig()
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("mcfdsrv version %v\n", Version)
}

// configure runs the initialization under a spinner
func configure(s *ratemon.Session) error {
	spinner, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[11],
		Suffix:            " configuring MCFD-16",
		SuffixAutoColon:   true,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		// no terminal, carry on without the spinner
		return s.Configure()
	}
	spinner.Start()
	err = s.Configure()
	if err != nil {
		spinner.StopFailMessage(err.Error())
		spinner.StopFail()
		return err
	}
	spinner.StopMessage("done")
	spinner.Stop()
	return nil
}

// open connects to the module and prepares a session
func open(c *Config) (*ratemon.Session, error) {
	if err := prompt(c); err != nil {
		return nil, err
	}
	t, err := comm.Open(c.Device, c.Comm())
	if err != nil {
		return nil, err
	}
	return ratemon.NewSession(t, c.Session())
}

func initonly() {
	c := loadConfig()
	setupLogging(c)
	c.Ticks = 1 // init does not poll, only ask for the device
	s, err := open(&c)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()
	if err := s.Handshake(); err != nil {
		log.Error(err)
		return
	}
	if err := configure(s); err != nil {
		log.Error(err)
	}
}

func run() error {
	c := loadConfig()
	setupLogging(c)
	s, err := open(&c)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Handshake(); err != nil {
		return err
	}
	if err := configure(s); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	if c.Addr != "" {
		srv := &http.Server{Addr: c.Addr, Handler: BuildMux(c, s)}
		g.Go(func() error {
			log.Infof("now listening for requests at %s", c.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}
	g.Go(func() error {
		defer stop()
		return s.Acquire(ctx)
	})
	err = g.Wait()
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	for _, st := range s.Stamps() {
		log.Infof("cycle %d at %s", st.Seq, st.Time.Format(time.RFC3339))
	}
	log.Infof("rates written to %s", c.LogPath)
	return err
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		if err := run(); err != nil {
			log.Fatal(err)
		}
		return
	case "init":
		initonly()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
