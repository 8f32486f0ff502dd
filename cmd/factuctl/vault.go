package main

import (
	"errors"
	"fmt"

	"factumovil/internal/infra"

	"github.com/spf13/cobra"
)

var cifrarCmd = &cobra.Command{
	Use:   "cifrar [texto]",
	Short: "Cifra un secreto con ENCRYPTION_KEY/ENCRYPTION_SALT",
	Example: `  factuctl cifrar MODDATOS
  ENCRYPTION_KEY=... factuctl cifrar 'clave-sol'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := infra.NewVault(cfg.EncryptionKey, cfg.EncryptionSalt).Encrypt(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var descifrarCmd = &cobra.Command{
	Use:   "descifrar [base64]",
	Short: "Comprueba que un secreto almacenado se descifra con la clave actual",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plain := infra.NewVault(cfg.EncryptionKey, cfg.EncryptionSalt).Decrypt(args[0])
		if plain == "" {
			return errors.New("no se pudo descifrar: clave o sal distintas, o dato corrupto")
		}
		fmt.Fprintln(cmd.OutOrStdout(), plain)
		return nil
	},
}
