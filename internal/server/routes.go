// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package server

import (
	"cmp"
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/chanrelay/chanrelay/internal/relay"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
	"github.com/chanrelay/chanrelay/pkg/health"
	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: HealthBody{Status: "ok"}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "relay-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Relay status",
		Description: "Channel configuration and copy counters since start.",
		Tags:        []string{"system"},
	}, s.handleStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "source-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/sources/{chat_id}",
		Summary:     "Source channel status",
		Description: "Whether the chat is a registered source, is the selected source, and its realtime backlog.",
		Tags:        []string{"channels"},
	}, s.handleSource)
}

// HealthBody is the JSON body of the health endpoint response.
type HealthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// HealthResponse wraps the health check response.
type HealthResponse struct {
	Body HealthBody
}

// ChannelsStatus mirrors the persisted channel configuration.
type ChannelsStatus struct {
	Sources        []int64 `json:"sources" doc:"Source channel ids"`
	Target         *int64  `json:"target" doc:"Target channel id, null when unset"`
	SelectedSource *int64  `json:"selected_source" doc:"Source used by manual copies, null when unset"`
}

// QueueStatus is the realtime backlog of one source.
type QueueStatus struct {
	ChatID  int64 `json:"chat_id"`
	Pending int   `json:"pending"`
}

// StatusBody is the JSON body of the status endpoint.
type StatusBody struct {
	Status   string              `json:"status" example:"ok" enum:"ok,starting" doc:"Relay status"`
	Version  string              `json:"version"`
	Channels ChannelsStatus      `json:"channels"`
	Relay    relay.StatsSnapshot `json:"relay"`
	Platform health.Metrics      `json:"platform" doc:"Flood wait cooldown and copy failures"`
	Queues   []QueueStatus       `json:"queues"`
}

type statusOutput struct {
	Body StatusBody
}

func (s *Server) handleStatus(_ context.Context, _ *struct{}) (*statusOutput, error) {
	out := &statusOutput{Body: StatusBody{
		Status:   "starting",
		Version:  s.cfg.Version,
		Channels: ChannelsStatus{Sources: []int64{}},
		Platform: health.Metrics{Available: true},
		Queues:   []QueueStatus{},
	}}
	svc := s.services
	if svc == nil || svc.Channels == nil {
		return out, nil
	}

	out.Body.Status = "ok"
	if cfg := svc.Channels.Snapshot(); cfg != nil {
		out.Body.Channels.Sources = append(out.Body.Channels.Sources, cfg.Sources...)
		out.Body.Channels.Target = cfg.Target
		out.Body.Channels.SelectedSource = cfg.SelectedSource
	}
	if svc.Stats != nil {
		out.Body.Relay = svc.Stats.Snapshot()
		out.Body.Platform = svc.Stats.Health()
	}
	if svc.Queues != nil {
		for id, n := range svc.Queues.QueueDepths() {
			out.Body.Queues = append(out.Body.Queues, QueueStatus{ChatID: id, Pending: n})
		}
		slices.SortFunc(out.Body.Queues, func(a, b QueueStatus) int {
			return cmp.Compare(a.ChatID, b.ChatID)
		})
	}
	return out, nil
}

type sourceInput struct {
	ChatID int64 `path:"chat_id" doc:"Source channel id (-100...)"`
}

// SourceBody describes one registered source channel.
type SourceBody struct {
	ChatID   int64 `json:"chat_id"`
	Selected bool  `json:"selected" doc:"Used by manual copies when no source is given"`
	Pending  int   `json:"pending" doc:"Messages waiting in the realtime queue"`
}

type sourceOutput struct {
	Body SourceBody
}

func (s *Server) handleSource(_ context.Context, in *sourceInput) (*sourceOutput, error) {
	svc := s.services
	if svc == nil || svc.Channels == nil {
		return nil, huma.Error503ServiceUnavailable("relay is starting")
	}
	if !relay.IsCanonicalChatID(in.ChatID) {
		return nil, apiError(relayerr.New(relayerr.CodeRegistryIDInvalid,
			"channel ids must start with "+relay.ChannelIDPrefix, relayerr.FieldChatID(in.ChatID)))
	}

	cfg := svc.Channels.Snapshot()
	if cfg == nil || !cfg.HasSource(in.ChatID) {
		return nil, apiError(relayerr.New(relayerr.CodeRegistrySourceNotFound,
			"not a source channel", relayerr.FieldChatID(in.ChatID)))
	}

	body := SourceBody{
		ChatID:   in.ChatID,
		Selected: cfg.SelectedSource != nil && *cfg.SelectedSource == in.ChatID,
	}
	if svc.Queues != nil {
		body.Pending = svc.Queues.QueueDepths()[in.ChatID]
	}
	return &sourceOutput{Body: body}, nil
}

// apiError converts a coded error into a huma error with the status its
// reason maps to.
func apiError(err error) error {
	status := relayerr.HTTPStatus(err)
	attrs := []any{"code", relayerr.CodeOf(err), "status", status, "fields", relayerr.FieldsOf(err), "error", err}
	if status >= http.StatusInternalServerError {
		slog.Error("status API request failed", attrs...)
	} else {
		slog.Debug("status API request rejected", attrs...)
	}
	return huma.NewError(status, err.Error())
}
