// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package store

import relayerr "github.com/chanrelay/chanrelay/pkg/errors"

// Sentinel errors for store operations. Check them with relayerr.HasCode or
// the relayerr predicates: errors.Is matches any oops error against any
// other, so it cannot tell the sentinels apart.
var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = relayerr.New(relayerr.CodeStoreDocumentNotFound, "not found")

	// ErrInvalidInput indicates the input parameters are invalid or malformed.
	ErrInvalidInput = relayerr.New(relayerr.CodeStoreInvalidInput, "invalid input")

	// ErrDatabase indicates a general backend failure.
	ErrDatabase = relayerr.New(relayerr.CodeStoreDatabaseFailure, "database error")
)
