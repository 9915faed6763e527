// Command storectl runs operator tasks against the storefront database:
// migrations, catalog seeding, inventory audits, order status changes and
// token minting for local testing.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rt := &toolEnv{}
	rootCmd := &cobra.Command{
		Use:           "storectl",
		Short:         "Operator tooling for the storefront backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			rt.close(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringVar(&rt.envFile, "env-file", ".env", "dotenv file loaded before reading STOREFRONT_* variables")

	rootCmd.AddCommand(migrateCmd(rt))
	rootCmd.AddCommand(productsCmd(rt))
	rootCmd.AddCommand(inventoryCmd(rt))
	rootCmd.AddCommand(ordersCmd(rt))
	rootCmd.AddCommand(tokenCmd(rt))
	return rootCmd
}
