package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authority/internal/http/server"
	"github.com/dropDatabas3/authority/internal/jobs"
)

func newCleanupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Borra una vez los action tokens, codes y refresh tokens vencidos",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := server.Build(ctx, opts.cfg, server.Options{
				Version:  version,
				Registry: prometheus.NewRegistry(),
			})
			if err != nil {
				return err
			}
			defer rt.Close()

			n, err := jobs.RunCleanup(ctx, rt.App.Verification, cleanupTimeout)
			if err != nil {
				return err
			}
			cmd.Printf("deleted %d expired records\n", n)
			return nil
		},
	}
}
