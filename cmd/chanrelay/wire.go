// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/chanrelay/chanrelay/internal/bot"
	"github.com/chanrelay/chanrelay/internal/config"
	"github.com/chanrelay/chanrelay/internal/relay"
	"github.com/chanrelay/chanrelay/internal/server"
	"github.com/chanrelay/chanrelay/internal/store"
	_ "github.com/chanrelay/chanrelay/internal/store/file"   // register file backend
	_ "github.com/chanrelay/chanrelay/internal/store/sqlite" // register sqlite backend
	"github.com/chanrelay/chanrelay/internal/telegram"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
)

// sessionRunner runs the Telegram session. Tests replace it.
var sessionRunner = telegram.Run

// Relay holds the long-lived components and the parts wired once the
// Telegram session is up.
type Relay struct {
	cfg      *config.Config
	Store    store.Store
	Registry *relay.Registry
	Stats    *relay.Stats
	Server   *server.Server

	queues queueDepths

	mu         sync.Mutex
	dispatcher *relay.Dispatcher
	handler    *bot.Handler
}

// queueDepths forwards to the dispatcher once the session has created it.
type queueDepths struct {
	d atomic.Pointer[relay.Dispatcher]
}

func (q *queueDepths) QueueDepths() map[int64]int {
	if d := q.d.Load(); d != nil {
		return d.QueueDepths()
	}
	return nil
}

// WireRelay opens storage, loads the channel registry and prepares the
// status server. Platform-dependent parts are built by Setup.
func WireRelay(ctx context.Context, cfg *config.Config) (*Relay, error) {
	dataDir := cfg.ResolveDataDir()
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, relayerr.Errorf(relayerr.CodeCLISetupFailure, "creating data directory: %w", err)
	}

	st, err := store.Open(&store.StorageConfig{Backend: cfg.Storage.Backend}, dataDir)
	if err != nil {
		return nil, relayerr.Errorf(relayerr.CodeCLISetupFailure, "opening %s store: %v", cfg.Storage.Backend, err)
	}

	reg, err := relay.LoadRegistry(ctx, st.Channels(), relay.RegistryOptions{
		ForbidSelfRelay: cfg.Relay.ForbidSelfRelay,
	})
	if err != nil {
		_ = st.Close()
		return nil, relayerr.Errorf(relayerr.CodeCLISetupFailure, "loading channel configuration: %v", err)
	}

	r := &Relay{
		cfg:      cfg,
		Store:    st,
		Registry: reg,
		Stats:    relay.NewStats(),
	}

	if cfg.Networking.Listen != "" {
		r.Server, err = server.New(server.Config{
			ListenAddr: cfg.Networking.Listen,
			Version:    version,
		}, &server.Services{Channels: reg, Stats: r.Stats, Queues: &r.queues})
		if err != nil {
			_ = st.Close()
			return nil, relayerr.Errorf(relayerr.CodeCLISetupFailure, "creating status server: %v", err)
		}
	} else {
		slog.Info("status API disabled")
	}

	return r, nil
}

// Setup is the telegram.SetupFunc: it binds the relay engine and the bot
// to the authorized client.
func (r *Relay) Setup(_ context.Context, c *telegram.Client) (telegram.Handlers, error) {
	d, h := r.attach(c, c)
	return telegram.Handlers{Source: d, Bot: h}, nil
}

func (r *Relay) attach(p relay.Platform, resp bot.Responder) (*relay.Dispatcher, *bot.Handler) {
	policy := relay.RetryPolicy{
		MaxAttempts:  r.cfg.Relay.FloodWait.MaxAttempts,
		MaxTotalWait: r.cfg.Relay.FloodWait.MaxTotalWait,
	}
	copier := relay.NewCopier(p, policy, r.Stats)
	resolver := relay.NewResolver(p)
	admin := relay.NewAdminValidator(p, p, r.cfg.Relay.ProbeText)

	d := relay.NewDispatcher(r.Registry, copier, r.Stats, r.cfg.Relay.QueueSize)
	h := bot.NewHandler(bot.Deps{
		Responder:    resp,
		Registry:     r.Registry,
		Registrar:    relay.NewRegistrar(resolver, admin, r.Registry),
		Resolver:     resolver,
		Admin:        admin,
		Directory:    p,
		Orchestrator: relay.NewOrchestrator(r.Registry, p, copier, r.cfg.Relay.MaxBatchSize),
		Users:        r.Store.Users(),
	}, bot.Config{
		Admins:    r.cfg.Bot.Admins,
		OwnerName: r.cfg.Bot.OwnerName,
	})

	r.mu.Lock()
	r.dispatcher, r.handler = d, h
	r.mu.Unlock()
	r.queues.d.Store(d)
	return d, h
}

// Run serves the status API and the Telegram session until ctx is done or
// the session ends.
func (r *Relay) Run(ctx context.Context, opts telegram.Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srvErr := make(chan error, 1)
	if r.Server != nil {
		go func() { srvErr <- r.Server.Start(ctx) }()
	} else {
		close(srvErr)
	}

	err := sessionRunner(ctx, opts, r.Setup)
	cancel()
	serr := <-srvErr
	switch {
	case serr == nil:
		return err
	case err == nil:
		return serr
	default:
		return relayerr.Join(err, serr)
	}
}

// Close stops background work and releases storage.
func (r *Relay) Close() error {
	r.mu.Lock()
	d, h := r.dispatcher, r.handler
	r.mu.Unlock()

	if h != nil {
		h.Close()
	}
	if d != nil {
		d.Close()
	}
	return r.Store.Close()
}
