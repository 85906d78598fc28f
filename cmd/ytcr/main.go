package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"ytcr.app/receiver/app"
	"ytcr.app/receiver/internal/config"
	"ytcr.app/receiver/internal/httphandlers"
	"ytcr.app/receiver/internal/utils"
	"ytcr.app/receiver/player"
	"ytcr.app/receiver/sender"
	"ytcr.app/receiver/session"
)

var (
	version    string
	build      string
	configArg  = flag.String("c", "", "Path to the settings file. (Defaults to the user config dir)")
	listenArg  = flag.String("listen", "", "Address the lounge websocket listens on.")
	launchArg  = flag.String("launch", "", "Address the launch endpoint listens on.")
	nameArg    = flag.String("name", "", "Screen name shown to senders.")
	debugPtr   = flag.Bool("debug", false, "Enable debug logging.")
	versionPtr = flag.Bool("version", false, "Print version.")
)

func main() {
	flag.Parse()

	if checkVerflag() {
		os.Exit(0)
	}

	conf, err := loadConfig()
	check(err)
	applyFlags(conf)

	conf.Listen, err = utils.PickListenAddr(conf.Listen)
	check(err)
	conf.LaunchListen, err = utils.PickListenAddr(conf.LaunchListen)
	check(err)

	logger := newLogger(os.Stderr, conf.Debug)

	ch := session.NewWSChannel(session.WSOptions{
		Addr: conf.Listen,
		Screen: session.ScreenInfo{
			Name:  conf.ScreenName,
			App:   conf.ScreenApp,
			Brand: conf.Brand,
			Model: conf.Model,
		},
		InboundRate:  conf.InboundRatePerSecond,
		InboundBurst: int(conf.InboundRatePerSecond),
		Logger:       logger.With().Str("Component", "session").Logger(),
	})

	p := player.NewMemory()
	p.Logger = logger.With().Str("Component", "player").Logger()

	a := app.New(p, ch,
		app.WithName(conf.ScreenName),
		app.WithLogger(logger.With().Str("Component", "app").Logger()),
		app.WithAutoplayOnConnect(conf.EnableAutoplayOnConnect),
		app.WithOperationTimeout(10*time.Second),
	)

	terminated := make(chan error, 1)
	a.OnTerminate(func(err error) { terminated <- err })
	a.OnSenderConnect(func(s sender.Sender) {
		logger.Info().Str("Sender", s.String()).Msg("connected")
	})
	a.OnSenderDisconnect(func(s sender.Sender) {
		logger.Info().Str("Sender", s.String()).Msg("disconnected")
	})
	a.OnError(func(err error) {
		logger.Warn().Err(err).Msg("app error")
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	check(a.Start(ctx))
	logger.Info().Str("Listen", ch.Addr()).Str("PID", a.PID()).Msg("receiver ready")

	code, err := a.PairingCodeRequestService().Request(ctx)
	check(errors.Wrap(err, "pairing code"))
	fmt.Printf("Pairing code: %s\n", code)

	s := httphandlers.NewServer(conf.LaunchListen)
	s.Logger = logger.With().Str("Component", "launch").Logger()
	serverStarted := make(chan string)
	go func() {
		err := s.ServeLaunch(serverStarted, a)
		check(err)
	}()
	// Wait for HTTP server to properly initialize
	logger.Info().Str("Listen", <-serverStarted).Msg("launch endpoint ready")
	defer s.StopServeLaunch()

	select {
	case <-ctx.Done():
		a.Stop(nil)
	case err := <-terminated:
		s.StopServeLaunch()
		check(errors.Wrap(err, "session terminated"))
	}
}

func loadConfig() (*config.Config, error) {
	if *configArg != "" {
		conf, err := config.Load(*configArg)
		return conf, errors.Wrap(err, "loadConfig error")
	}

	conf, err := config.GetAppConfig()
	return conf, errors.Wrap(err, "loadConfig error")
}

func applyFlags(conf *config.Config) {
	if *listenArg != "" {
		conf.Listen = *listenArg
	}
	if *launchArg != "" {
		conf.LaunchListen = *launchArg
	}
	if *nameArg != "" {
		conf.ScreenName = *nameArg
	}
	if *debugPtr {
		conf.Debug = true
	}
}

func newLogger(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		Level(level).With().Timestamp().Logger()
}

func checkVerflag() bool {
	if *versionPtr {
		fmt.Printf("ytcr Version: %s, ", version)
		fmt.Printf("Build: %s\n", build)
		return true
	}
	return false
}

func check(err error) {
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Encountered error(s): %s\n", err)
		os.Exit(1)
	}
}
