package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/takagi-dev/takagi/pkg/keys"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a fresh private keyset",
		Long: `Generate a fresh private keyset and print it to stdout as JSON. The
output is suitable for the TAKAGI_KEYSET environment variable or, written to a
file, for TAKAGI_KEYSET_FILE. It contains private key material: handle it like
any other secret.`,
		RunE: runKeygen,
	}
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	set, err := keys.Generate()
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize keyset: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
