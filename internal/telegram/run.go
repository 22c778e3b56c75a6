// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package telegram

import (
	"context"
	"log/slog"

	"github.com/gotd/td/session"
	tdclient "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
)

// Options configures the MTProto session.
type Options struct {
	AppID       int
	AppHash     string
	BotToken    string
	SessionFile string
	// Verbose routes the client library's own logs to stderr.
	Verbose bool
}

// Validate reports missing credentials.
func (o Options) Validate() error {
	switch {
	case o.AppID <= 0:
		return relayerr.New(relayerr.CodeConfigValidateInvalidValue, "telegram.app_id is required")
	case o.AppHash == "":
		return relayerr.New(relayerr.CodeConfigValidateInvalidValue, "telegram.app_hash is required")
	case o.BotToken == "":
		return relayerr.New(relayerr.CodeConfigValidateInvalidValue, "telegram.bot_token is required")
	case o.SessionFile == "":
		return relayerr.New(relayerr.CodeConfigValidateInvalidValue, "telegram.session_file is required")
	}
	return nil
}

// SetupFunc wires consumers once the bot is authorized. It runs inside the
// session; the returned handlers start receiving updates immediately.
type SetupFunc func(ctx context.Context, c *Client) (Handlers, error)

// Run connects, authorizes as a bot, calls setup and then processes updates
// until ctx is cancelled.
func Run(ctx context.Context, opts Options, setup SetupFunc) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	log := newZapLogger(opts.Verbose)
	defer func() { _ = log.Sync() }()

	router := NewRouter()
	var gaps *updates.Manager
	client := tdclient.NewClient(opts.AppID, opts.AppHash, tdclient.Options{
		Logger:         log.Named("client"),
		SessionStorage: &session.FileStorage{Path: opts.SessionFile},
		UpdateHandler: tdclient.UpdateHandlerFunc(func(ctx context.Context, u tg.UpdatesClass) error {
			return gaps.Handle(ctx, u)
		}),
	})
	pm := peers.Options{Logger: log.Named("peers")}.Build(client.API())
	gaps = updates.New(updates.Config{
		Handler: pm.UpdateHook(router),
		Logger:  log.Named("updates"),
	})

	err := client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return relayerr.Wrap(err, relayerr.CodePlatformUpstreamFailure, "checking auth status")
		}
		if !status.Authorized {
			if _, err := client.Auth().Bot(ctx, opts.BotToken); err != nil {
				return relayerr.Wrap(err, relayerr.CodeChannelTokenInvalid, "bot login")
			}
		}

		self, err := client.Self(ctx)
		if err != nil {
			return relayerr.Wrap(err, relayerr.CodePlatformUpstreamFailure, "fetching bot account")
		}
		slog.Info("telegram session ready", "bot_id", self.ID, "username", self.Username)

		h, err := setup(ctx, NewClient(client.API(), pm))
		if err != nil {
			return err
		}
		router.Bind(h)

		return gaps.Run(ctx, client.API(), self.ID, updates.AuthOptions{
			IsBot: true,
			OnStart: func(context.Context) {
				slog.Info("listening for updates")
			},
		})
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func newZapLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}
