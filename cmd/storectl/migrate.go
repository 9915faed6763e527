package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

func migrateCmd(rt *toolEnv) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect goose migrations",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", migrate.DefaultDir, "goose migrations directory")

	run := func(c *cobra.Command, command string, args ...string) error {
		pool, err := rt.sqlDB(c.Context())
		if err != nil {
			return err
		}
		return migrate.Run(c.Context(), pool, dir, c.OutOrStdout(), command, args...)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			Args:  cobra.NoArgs,
			RunE:  func(c *cobra.Command, _ []string) error { return run(c, "up") },
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the newest applied migration",
			Args:  cobra.NoArgs,
			RunE:  func(c *cobra.Command, _ []string) error { return run(c, "down") },
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations with their applied time",
			Args:  cobra.NoArgs,
			RunE:  func(c *cobra.Command, _ []string) error { return run(c, "status") },
		},
		&cobra.Command{
			Use:   "version <YYYYMMDDHHMMSS>",
			Short: "Migrate up or down to a specific version",
			Args:  cobra.ExactArgs(1),
			RunE:  func(c *cobra.Command, args []string) error { return run(c, "version", args[0]) },
		},
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a timestamped SQL migration",
			Args:  cobra.ExactArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				path, err := migrate.CreateSQLMigration(dir, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(c.OutOrStdout(), "created", path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Check migration names and goose annotations",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				if err := migrate.ValidateDir(dir); err != nil {
					return err
				}
				fmt.Fprintln(c.OutOrStdout(), "migrations ok")
				return nil
			},
		},
	)
	return cmd
}
