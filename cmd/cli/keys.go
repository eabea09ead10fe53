package cli

import (
	"fmt"

	"github.com/flowbaker/weave/internal/auth"
	"github.com/spf13/cobra"
)

func NewKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Generate an Ed25519 key pair for signing job runner requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := auth.GenerateKeyPair()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "# editor (serve)")
			fmt.Fprintf(out, "WEAVE_RUNNER_SIGNING_PRIVATE_KEY=%s\n", keys.PrivateKey)
			fmt.Fprintln(out, "# job runner (runner)")
			fmt.Fprintf(out, "WEAVE_RUNNER_SIGNING_PUBLIC_KEY=%s\n", keys.PublicKey)

			return nil
		},
	}

	return cmd
}
