package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/JuweiLin/ARProject/internal/api"
	"github.com/JuweiLin/ARProject/internal/devicehub"
	"github.com/JuweiLin/ARProject/internal/headset"
	"github.com/JuweiLin/ARProject/internal/natsserver"
	"github.com/JuweiLin/ARProject/internal/notifier"
	"github.com/JuweiLin/ARProject/internal/phone"
	"github.com/JuweiLin/ARProject/internal/tasks"
)

// Daemon is the arhubd process.
type Daemon struct {
	cfg       Config
	logger    zerolog.Logger
	nats      *natsserver.Server
	store     *tasks.Store
	tracker   *tasks.Tracker
	hub       *devicehub.Hub
	notifier  *notifier.Notifier
	headset   *headset.Server
	phone     *phone.Server
	apiServer *api.Server
	startedAt time.Time
	stopCh    chan struct{}
	readyCh   chan struct{}
}

// NewDaemon creates a Daemon from config.
func NewDaemon(cfg Config, logger zerolog.Logger) *Daemon {
	return &Daemon{
		cfg:     cfg,
		logger:  logger,
		stopCh:  make(chan struct{}),
		readyCh: make(chan struct{}),
	}
}

// Run starts all subsystems and blocks until a signal is received or Stop is called.
func (d *Daemon) Run() error {
	d.startedAt = time.Now()

	// 1. Start embedded NATS.
	ns, err := natsserver.New(natsserver.Config{
		Host:  d.cfg.NATS.Host,
		Port:  d.cfg.NATS.Port,
		Token: d.cfg.NATS.Token,
	}, d.logger)
	if err != nil {
		return fmt.Errorf("start nats: %w", err)
	}
	d.nats = ns
	nc := ns.Conn()

	// 2. Start the task tracker, with its action store when configured.
	if d.cfg.Experiment.DBPath != "" {
		store, err := tasks.OpenStore(d.cfg.Experiment.DBPath)
		if err != nil {
			d.shutdown()
			return fmt.Errorf("open action store: %w", err)
		}
		d.store = store
	}
	d.tracker = tasks.New(d.cfg.Experiment.Target, d.store, nc, d.logger)
	if err := d.tracker.Start(); err != nil {
		d.shutdown()
		return fmt.Errorf("start tracker: %w", err)
	}

	// 3. Device hub and browser notifier.
	d.hub = devicehub.New(devicehub.Config{
		Listen:       d.cfg.Device.Listen,
		PingInterval: d.cfg.Device.PingInterval,
		PongTimeout:  d.cfg.Device.PongTimeout,
	}, nc, d.logger)
	d.notifier = notifier.New(d.hub, nc, d.logger)
	if err := d.notifier.Start(); err != nil {
		d.shutdown()
		return fmt.Errorf("start notifier: %w", err)
	}

	// 4. Network servers.
	d.headset = headset.New(d.cfg.Headset.Listen, d.tracker, nc, d.logger)
	d.phone = phone.New(d.cfg.Phone.Listen, d.hub, http.HandlerFunc(d.notifier.HandleWS), nc, d.logger)
	src := api.Sources{
		Devices:  d.hub,
		Tasks:    d.tracker,
		Browsers: d.notifier,
		Headsets: d.headset,
	}
	if d.store != nil {
		src.History = d.store
	}
	d.apiServer = api.New(d.cfg.Server.Socket, src, d.startedAt, d.logger)

	errCh := make(chan error, 4)
	for name, start := range map[string]func() error{
		"device server":  d.hub.Start,
		"headset server": d.headset.Start,
		"phone server":   d.phone.Start,
		"API server":     d.apiServer.Start,
	} {
		go func() {
			if err := start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	// 5. Hot reload of the experiment target.
	if d.cfg.ConfigFile != "" {
		if err := WatchExperiment(d.cfg.ConfigFile, d.applyExperiment); err != nil {
			d.logger.Warn().Err(err).Str("file", d.cfg.ConfigFile).Msg("config watch disabled")
		}
	}

	d.logger.Info().
		Str("device", d.cfg.Device.Listen).
		Str("phone", d.cfg.Phone.Listen).
		Str("headset", d.cfg.Headset.Listen).
		Str("socket", d.cfg.Server.Socket).
		Msg("arhubd started")
	close(d.readyCh)

	// 6. Wait for signal, stop call, or server error.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		d.logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-d.stopCh:
		d.logger.Info().Msg("stop requested, shutting down")
	case runErr = <-errCh:
		d.logger.Error().Err(runErr).Msg("server error")
	}

	d.shutdown()
	return runErr
}

// Ready is closed once every subsystem has been started.
func (d *Daemon) Ready() <-chan struct{} { return d.readyCh }

// Stop signals the daemon to shut down. Safe to call from another goroutine.
func (d *Daemon) Stop() {
	close(d.stopCh)
}

func (d *Daemon) applyExperiment(exp ExperimentConfig) {
	if d.tracker == nil || exp.Target == d.tracker.Target() {
		return
	}
	d.tracker.SetTarget(exp.Target)
}

func (d *Daemon) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if d.apiServer != nil {
		d.apiServer.Shutdown(ctx)
	}
	if d.phone != nil {
		d.phone.Shutdown(ctx)
	}
	if d.headset != nil {
		d.headset.Shutdown(ctx)
	}
	if d.hub != nil {
		d.hub.Shutdown(ctx)
	}
	if d.notifier != nil {
		d.notifier.Close()
	}
	if d.tracker != nil {
		d.tracker.Close()
		d.logger.Info().Str("run", d.tracker.Run()).Str("tasks", d.tracker.Summary()).Msg("experiment finished")
	}
	if d.store != nil {
		d.store.Close()
	}
	if d.nats != nil {
		d.nats.Shutdown()
	}
}
