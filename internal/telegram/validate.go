// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package telegram

import (
	"context"
	"errors"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
)

// ValidateToken calls the Bot API getMe endpoint to verify the bot token
// and returns the bot's username.
func ValidateToken(ctx context.Context, client *http.Client, token string) (string, error) {
	return ValidateTokenWithEndpoint(ctx, client, token, tgbotapi.APIEndpoint)
}

// ValidateTokenWithEndpoint is ValidateToken against a custom endpoint
// format ("<base>/bot%s/%s").
func ValidateTokenWithEndpoint(ctx context.Context, client *http.Client, token, endpoint string) (string, error) {
	type result struct {
		username string
		err      error
	}
	done := make(chan result, 1)
	go func() {
		api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{username: api.Self.UserName}
	}()

	select {
	case <-ctx.Done():
		return "", relayerr.Errorf(relayerr.CodeChannelTokenCheckFailed, "validating Telegram token: %w", ctx.Err())
	case r := <-done:
		if r.err == nil {
			return r.username, nil
		}
		var apiErr *tgbotapi.Error
		if errors.As(r.err, &apiErr) && (apiErr.Code == http.StatusUnauthorized ||
			apiErr.Code == http.StatusForbidden || apiErr.Code == http.StatusNotFound) {
			return "", relayerr.Errorf(relayerr.CodeChannelTokenInvalid, "invalid Telegram bot token (%d %s)", apiErr.Code, apiErr.Message)
		}
		return "", relayerr.Errorf(relayerr.CodeChannelTokenCheckFailed, "validating Telegram token: %v", r.err)
	}
}
