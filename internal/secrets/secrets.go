// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

// Package secrets keeps Telegram credentials out of the config file. Values
// live in the OS keyring and the config refers to them with
// keyring://service/key URIs.
package secrets

// DefaultService is the keyring service `chanrelay secret` writes to.
const DefaultService = "chanrelay"

// SensitiveKeys are the config keys expected to carry keyring URIs.
var SensitiveKeys = []string{"telegram.app_hash", "telegram.bot_token"}

// Store is a keyring-like secret store.
type Store interface {
	// Set saves value under service/key, replacing any previous value.
	Set(service, key, value string) error
	// Get returns CodeSecretNotFound when the key does not exist.
	Get(service, key string) (string, error)
	// Delete returns CodeSecretNotFound when the key does not exist.
	Delete(service, key string) error
	// List returns the key names stored under service, in insertion order.
	List(service string) ([]string, error)
}
