package main

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authority/internal/config"
	"github.com/dropDatabas3/authority/internal/observability/logger"
)

type rootOptions struct {
	configPath string
	envFile    string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "authority",
		Short:         "Servidor OAuth2 (password, authorization_code+PKCE, refresh_token)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env es opcional
			if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			cfg.Log.ServiceName = "authority"
			cfg.Log.Version = version
			logger.Init(cfg.Log)
			opts.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Archivo YAML de configuración (env AUTHORITY_* pisa sus valores)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Archivo .env a cargar si existe")

	root.AddCommand(
		newServeCmd(opts),
		newCleanupCmd(opts),
		newMigrateCmd(opts),
		newKeysCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Imprime la versión",
		// no necesita config
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}
