// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
	"github.com/zalando/go-keyring"
)

// indexKey names the entry holding the JSON list of a service's keys.
// go-keyring cannot enumerate entries, so List reads this instead.
const indexKey = ".index"

// KeyringStore implements Store on the OS keyring (Keychain, Secret
// Service or Credential Manager).
type KeyringStore struct{}

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func checkRef(op, service, key string) error {
	switch {
	case service == "":
		return relayerr.New(relayerr.CodeSecretInvalidInput, "secret "+op+": service must not be empty")
	case key == "":
		return relayerr.New(relayerr.CodeSecretInvalidInput, "secret "+op+": key must not be empty")
	case key == indexKey:
		return relayerr.New(relayerr.CodeSecretInvalidInput, "secret "+op+": key "+indexKey+" is reserved")
	}
	return nil
}

func (s *KeyringStore) Set(service, key, value string) error {
	if err := checkRef("set", service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return relayerr.Wrapf(err, relayerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}
	return s.updateIndex(service, func(keys []string) []string {
		if slices.Contains(keys, key) {
			return keys
		}
		return append(keys, key)
	})
}

func (s *KeyringStore) Get(service, key string) (string, error) {
	if err := checkRef("get", service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", relayerr.Errorf(relayerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return "", relayerr.Wrapf(err, relayerr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkRef("delete", service, key); err != nil {
		return err
	}
	err := keyring.Delete(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return relayerr.Errorf(relayerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return relayerr.Wrapf(err, relayerr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}
	return s.updateIndex(service, func(keys []string) []string {
		return slices.DeleteFunc(keys, func(k string) bool { return k == key })
	})
}

func (s *KeyringStore) List(service string) ([]string, error) {
	if service == "" {
		return nil, relayerr.New(relayerr.CodeSecretInvalidInput, "secret list: service must not be empty")
	}
	return loadIndex(service)
}

func (s *KeyringStore) updateIndex(service string, fn func([]string) []string) error {
	keys, err := loadIndex(service)
	if err != nil {
		return err
	}
	keys = fn(keys)

	if len(keys) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("removing empty secret index failed", "service", service, "error", err)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return relayerr.Wrapf(err, relayerr.CodeSecretListFailure, "encoding key index for %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return relayerr.Wrapf(err, relayerr.CodeSecretListFailure, "saving key index for %s", service)
	}
	return nil
}

func loadIndex(service string) ([]string, error) {
	raw, err := keyring.Get(service, indexKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, relayerr.Wrapf(err, relayerr.CodeSecretListFailure, "loading key index for %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, relayerr.Wrapf(err, relayerr.CodeSecretListFailure, "decoding key index for %s", service)
	}
	return keys, nil
}
