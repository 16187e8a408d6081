package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authority/internal/http/server"
	"github.com/dropDatabas3/authority/internal/store"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones SQL embebidas (postgres | sqlite)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sc := opts.cfg.Storage
			sc.AutoMigrate = false

			conn, err := server.OpenStore(ctx, sc)
			if err != nil {
				return err
			}
			defer conn.Close()

			m, ok := conn.(store.MigratableConnection)
			if !ok {
				return fmt.Errorf("driver %q has no migrations", sc.Driver)
			}
			res, err := m.Migrate(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("applied=%v skipped=%v took=%s\n", res.Applied, res.Skipped, res.Duration)
			return nil
		},
	}
}
