// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chanrelay/chanrelay/internal/server"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show relay status",
		Long:  "Query the running relay's status API and print its channel configuration and counters.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "", "status API address (default: networking.listen)")

	return cmd
}

// statusAddress returns --address or the configured listen address.
func statusAddress(cmd *cobra.Command) string {
	if addr, _ := cmd.Flags().GetString("address"); addr != "" {
		return addr
	}
	return viper.GetString("networking.listen")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr := statusAddress(cmd)
	out := cmd.OutOrStdout()
	if addr == "" {
		_, _ = fmt.Fprintln(out, "Status API is disabled (networking.listen is empty)")
		return nil
	}

	var body server.StatusBody
	if err := newStatusClient(addr).getJSON("/api/v1/status", &body); err != nil {
		if relayerr.HasCode(err, relayerr.CodeCLIGatewayNotRunning) {
			_, _ = fmt.Fprintf(out, "Relay at %s is not running (connection refused)\n", addr)
			return nil
		}
		return err
	}

	_, _ = fmt.Fprintf(out, "Relay at %s: %s (version %s)\n", addr, body.Status, body.Version)
	_, _ = fmt.Fprintf(out, "  Sources:         %s\n", formatIDs(body.Channels.Sources))
	_, _ = fmt.Fprintf(out, "  Target:          %s\n", formatID(body.Channels.Target))
	_, _ = fmt.Fprintf(out, "  Selected source: %s\n", formatID(body.Channels.SelectedSource))
	_, _ = fmt.Fprintf(out, "  Copied:          %d delivered, %d skipped, %d failed, %d dropped, %d flood waits\n",
		body.Relay.Delivered, body.Relay.Skipped, body.Relay.Failed, body.Relay.Dropped, body.Relay.FloodWaits)
	if until := body.Platform.CooldownUntil; until != nil && !body.Platform.Available {
		_, _ = fmt.Fprintf(out, "  Flood wait:      until %s\n", until.Local().Format(time.TimeOnly))
	}
	for _, q := range body.Queues {
		if q.Pending > 0 {
			_, _ = fmt.Fprintf(out, "  Backlog %d:  %d\n", q.ChatID, q.Pending)
		}
	}
	return nil
}

func formatID(id *int64) string {
	if id == nil {
		return "not set"
	}
	return strconv.FormatInt(*id, 10)
}

func formatIDs(ids []int64) string {
	if len(ids) == 0 {
		return "none"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
