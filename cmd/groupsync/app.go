package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/cuemby/groupsync/pkg/applier"
	"github.com/cuemby/groupsync/pkg/config"
	"github.com/cuemby/groupsync/pkg/events"
	"github.com/cuemby/groupsync/pkg/log"
	"github.com/cuemby/groupsync/pkg/metrics"
	"github.com/cuemby/groupsync/pkg/notify"
	"github.com/cuemby/groupsync/pkg/reconciler"
	"github.com/cuemby/groupsync/pkg/remote"
	"github.com/cuemby/groupsync/pkg/resolver"
	"github.com/cuemby/groupsync/pkg/runner"
	"github.com/cuemby/groupsync/pkg/source"
	"github.com/cuemby/groupsync/pkg/stats"
	"github.com/cuemby/groupsync/pkg/storage"
	"github.com/spf13/cobra"
)

// app holds everything one command invocation needs
type app struct {
	cfg        *config.Config
	store      *storage.BoltStore
	tracker    *stats.Tracker
	runner     *runner.Runner
	reconciler *reconciler.Reconciler
	broker     *events.Broker
}

// loadConfig reads the config file named by --config and applies the flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
		Output:     os.Stderr,
	})
	return cfg, nil
}

// openApp opens the store and builds a runner. With pipeline set it also
// wires the local source, the remote service and the step handlers, which
// read-only commands do not need.
func openApp(cmd *cobra.Command, pipeline bool, opts ...runner.Option) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		store:   store,
		tracker: stats.NewTracker(store, cfg.QueueName),
	}

	opts = append([]runner.Option{
		runner.WithQueueName(cfg.QueueName),
		runner.WithEndURL(cfg.EndURL),
	}, opts...)

	if !pipeline {
		a.runner = runner.New(store, a.tracker, opts...)
		return a, nil
	}

	if cfg.LocalSource == "" {
		store.Close()
		return nil, fmt.Errorf("local_source is required")
	}
	if cfg.RemoteDirectory == "" {
		store.Close()
		return nil, fmt.Errorf("remote_directory is required")
	}

	local, err := source.LoadFile(cfg.LocalSource)
	if err != nil {
		store.Close()
		return nil, err
	}
	svc := remote.NewFileService(cfg.RemoteDirectory)

	notifier, err := buildNotifier(cfg.Notify)
	if err != nil {
		store.Close()
		return nil, err
	}

	a.broker = events.NewBroker()
	opts = append(opts,
		runner.WithQualifier(reconciler.MinMembersQualifier(local, cfg.MinMembers)),
		runner.WithBroker(a.broker),
	)
	a.runner = runner.New(store, a.tracker, opts...)

	a.reconciler = reconciler.New(reconciler.Config{
		Staging:  store,
		Remote:   svc,
		Local:    local,
		Mappings: source.StaticMappings(cfg.Mappings),
		Resolver: resolver.New(local, cfg.SyncLocationType),
		Applier:  applier.New(svc, store, notifier, cfg.Notify.AdminURL),
		Tracker:  a.tracker,
		Role:     cfg.Role,
	})
	a.reconciler.Register(a.runner)

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}
	return a, nil
}

func buildNotifier(cfg config.NotifyConfig) (notify.Notifier, error) {
	notifiers := notify.Multi{notify.NewLogNotifier()}
	if cfg.SMTPAddr == "" {
		return notifiers, nil
	}

	mail, err := notify.NewSMTPNotifier(notify.SMTPConfig{
		Addr:     cfg.SMTPAddr,
		From:     cfg.From,
		To:       cfg.To,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid notify settings: %w", err)
	}
	return append(notifiers, mail), nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Logger.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
	}
}

// watch prints progress events until the broker stops
func (a *app) watch() chan struct{} {
	done := make(chan struct{})
	if a.broker == nil {
		close(done)
		return done
	}

	sub := a.broker.Subscribe()
	a.broker.Start()
	go func() {
		defer close(done)
		for ev := range sub {
			switch ev.Type {
			case events.EventStepCompleted:
				fmt.Printf("✓ %s\n", ev.Message)
			case events.EventStepFailed:
				fmt.Printf("✗ %s: %s\n", ev.Message, ev.Metadata["error"])
			}
		}
	}()
	return done
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}
