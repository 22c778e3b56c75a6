// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package secrets

import (
	"log/slog"
	"strings"

	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
	"github.com/spf13/viper"
)

const keyringScheme = "keyring://"

// IsKeyringURI reports whether value uses the keyring:// scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// URI builds the reference to put in the config for service/key.
func URI(service, key string) string {
	return keyringScheme + service + "/" + key
}

// ParseKeyringURI splits keyring://service/key. The key may itself contain
// slashes.
func ParseKeyringURI(uri string) (service, key string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", relayerr.Errorf(relayerr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}

	service, key, ok := strings.Cut(strings.TrimPrefix(uri, keyringScheme), "/")
	if !ok || service == "" || key == "" {
		return "", "", relayerr.Errorf(relayerr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}
	return service, key, nil
}

// Resolve returns the secret a keyring URI points at. Other values are
// returned unchanged.
func Resolve(store Store, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}

	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}

	secret, err := store.Get(service, key)
	if err != nil {
		return "", relayerr.Errorf(relayerr.CodeSecretResolveFailure, "resolving %q: %v", value, err)
	}
	return secret, nil
}

// ResolveViperSecrets replaces keyring URIs among the string values of v
// with the secrets they reference. Keys whose URI could not be resolved keep
// the URI and are returned so the caller can decide whether it needs them.
func ResolveViperSecrets(v *viper.Viper, store Store) []string {
	var unresolved []string
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if !ok || !IsKeyringURI(val) {
			continue
		}

		secret, err := Resolve(store, val)
		if err != nil {
			slog.Warn("keyring reference not resolved", "config_key", key, "error", err)
			unresolved = append(unresolved, key)
			continue
		}
		v.Set(key, secret)
	}
	return unresolved
}
