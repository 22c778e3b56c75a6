// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/chanrelay/chanrelay/internal/secrets"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
	"github.com/spf13/cobra"
)

// secretStoreFactory creates a secrets.Store. Tests substitute an in-memory
// implementation.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage credentials stored in the OS keyring",
		Long: "Store the app hash and bot token in the operating system keyring and reference them from the config as " +
			secrets.URI(secrets.DefaultService, "<name>") + ".",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <name> [value]",
			Short: "Store a secret; the value is read from stdin when omitted",
			Args:  cobra.RangeArgs(1, 2),
			RunE:  runSecretSet,
		},
		&cobra.Command{
			Use:   "list",
			Short: "List stored secret names",
			Args:  cobra.NoArgs,
			RunE:  runSecretList,
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a secret by name",
			Args:  cobra.ExactArgs(1),
			RunE:  runSecretDelete,
		},
	)

	return cmd
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	name := args[0]
	var value string
	if len(args) == 2 {
		value = args[1]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return relayerr.Errorf(relayerr.CodeCLIInputInvalid, "reading secret from stdin: %v", err)
		}
		value = strings.TrimRight(line, "\r\n")
	}
	if value == "" {
		return relayerr.New(relayerr.CodeCLIInputInvalid, "secret value must not be empty")
	}

	if err := secretStoreFactory().Set(secrets.DefaultService, name, value); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored secret %s. Reference it as %s\n",
		name, secrets.URI(secrets.DefaultService, name))
	return nil
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	keys, err := secretStoreFactory().List(secrets.DefaultService)
	if err != nil {
		return relayerr.Errorf(relayerr.CodeSecretListFailure, "listing secrets: %v", err)
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
		return nil
	}
	for _, k := range keys {
		_, _ = fmt.Fprintln(out, k)
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]

	if err := secretStoreFactory().Delete(secrets.DefaultService, name); err != nil {
		if relayerr.HasCode(err, relayerr.CodeSecretNotFound) {
			return relayerr.Errorf(relayerr.CodeSecretNotFound, "secret %q not found", name)
		}
		return relayerr.Errorf(relayerr.CodeSecretDeleteFailure, "deleting secret %q: %v", name, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}
