// Command factuctl is the operator CLI: encrypts SUNAT secrets for manual
// inserts, checks stored ones, seeds a demo sender and runs the AI
// extractor on a local file.
package main

import (
	"fmt"
	"os"

	"factumovil/internal/config"
	"factumovil/internal/infra"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "factuctl",
	Short:         "Herramientas de operación de FactuMovil",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		level := "warn"
		if verbose {
			level = "debug"
		}
		infra.SetupLogger(level, false)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log de depuración")
	rootCmd.AddCommand(cifrarCmd, descifrarCmd, extraerCmd, sembrarCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
