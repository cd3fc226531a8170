package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adopt-ai/zapi-go/pkg/providers"
)

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the LLM providers supported for bring-your-own-key",
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range providers.All() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", string(p), providers.DisplayName(p))
			}
		},
	}
}

func init() {
	rootCmd.AddCommand(newProvidersCmd())
}
