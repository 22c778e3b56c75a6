// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package main

import (
	"bytes"
	"slices"
	"testing"

	"github.com/chanrelay/chanrelay/internal/secrets"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// mockSecretStore is an in-memory secrets.Store; the service is ignored.
type mockSecretStore struct {
	keys []string
	data map[string]string
}

func newMockSecretStore(pairs ...string) *mockSecretStore {
	m := &mockSecretStore{data: make(map[string]string)}
	for i := 0; i+1 < len(pairs); i += 2 {
		_ = m.Set(secrets.DefaultService, pairs[i], pairs[i+1])
	}
	return m
}

func (m *mockSecretStore) Set(_, key, value string) error {
	if _, ok := m.data[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.data[key] = value
	return nil
}

func (m *mockSecretStore) Get(_, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", relayerr.Errorf(relayerr.CodeSecretNotFound, "not found")
	}
	return v, nil
}

func (m *mockSecretStore) Delete(_, key string) error {
	if _, ok := m.data[key]; !ok {
		return relayerr.Errorf(relayerr.CodeSecretNotFound, "not found")
	}
	delete(m.data, key)
	m.keys = slices.DeleteFunc(m.keys, func(k string) bool { return k == key })
	return nil
}

func (m *mockSecretStore) List(string) ([]string, error) {
	return slices.Clone(m.keys), nil
}

// useSecrets routes secretStoreFactory to m for the test.
func useSecrets(t *testing.T, m *mockSecretStore) {
	t.Helper()
	old := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return m }
	t.Cleanup(func() { secretStoreFactory = old })
}

// newTestRoot returns a root command with a fresh global viper, a private
// HOME and captured output.
func newTestRoot(t *testing.T, args ...string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())
	useSecrets(t, newMockSecretStore())

	root := NewRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	return root, out
}
