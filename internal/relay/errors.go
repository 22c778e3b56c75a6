// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package relay

import (
	"errors"
	"fmt"
	"time"
)

// FloodWaitError is returned by a Platform when the server demands a pause
// before the next request. It is a retry signal, not a terminal failure.
type FloodWaitError struct {
	Wait time.Duration
	Err  error
}

func (e *FloodWaitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("flood wait %s: %v", e.Wait, e.Err)
	}
	return fmt.Sprintf("flood wait %s", e.Wait)
}

func (e *FloodWaitError) Unwrap() error { return e.Err }

// AsFloodWait extracts a FloodWaitError from err's chain.
func AsFloodWait(err error) (*FloodWaitError, bool) {
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw, true
	}
	return nil, false
}
