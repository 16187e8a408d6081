package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authority/internal/clock"
	jwtx "github.com/dropDatabas3/authority/internal/jwt"
)

func newKeysCmd(opts *rootOptions) *cobra.Command {
	keys := &cobra.Command{Use: "keys", Short: "Manejo de la clave de firma Ed25519"}

	var out string
	var force bool
	gen := &cobra.Command{
		Use:   "generate",
		Short: "Genera una clave nueva en formato JWK",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := out
			if path == "" {
				path = opts.cfg.JWT.KeyFile
			}
			if path == "" {
				return errors.New("--out es requerido (o jwt.key_file en la config)")
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s ya existe (usar --force para reemplazarla)", path)
			}
			priv, err := jwtx.GenerateKey()
			if err != nil {
				return err
			}
			if err := jwtx.WriteKeyFile(path, priv); err != nil {
				return err
			}
			s, err := jwtx.NewSigner(opts.cfg.JWT.Issuer, priv, clock.System{})
			if err != nil {
				return err
			}
			cmd.Printf("kid=%s path=%s\n", s.KeyID(), path)
			return nil
		},
	}
	gen.Flags().StringVarP(&out, "out", "o", "", "Destino del JWK (default jwt.key_file)")
	gen.Flags().BoolVar(&force, "force", false, "Reemplaza una clave existente")

	keys.AddCommand(gen)
	return keys
}
