// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
)

// defaultHTTPClient is used by commands that talk to a running relay or to
// the Bot API. Tests swap it for an httptest client.
var defaultHTTPClient = &http.Client{
	Timeout: 5 * time.Second,
}

// statusClient reads the status API of a running relay.
type statusClient struct {
	baseURL string
	http    *http.Client
}

func newStatusClient(addr string) *statusClient {
	return &statusClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
// A refused connection yields CodeCLIGatewayNotRunning.
func (c *statusClient) getJSON(path string, dest any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		if isDialError(err) {
			return relayerr.New(relayerr.CodeCLIGatewayNotRunning, "relay is not running (connection refused)")
		}
		return relayerr.Errorf(relayerr.CodeCLIRequestFailure, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return relayerr.Errorf(relayerr.CodeCLIRequestFailure, "relay returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return relayerr.Errorf(relayerr.CodeCLIRequestFailure, "invalid response: %w", err)
	}
	return nil
}

func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
