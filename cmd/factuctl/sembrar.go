package main

import (
	"errors"
	"fmt"

	"factumovil/internal/dto"
	"factumovil/internal/infra"
	"factumovil/internal/repository"
	"factumovil/internal/service"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var sembrarCmd = &cobra.Command{
	Use:   "sembrar",
	Short: "Crea un emisor de demo con credenciales de prueba SUNAT y un catálogo mínimo",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ruc, _ := cmd.Flags().GetString("ruc")

		db, err := infra.NewDatabase(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("conectando a postgres: %w", err)
		}
		emisorRepo := repository.NewEmisorRepository(db)
		emisores := service.NewEmisorService(emisorRepo, infra.NewVault(cfg.EncryptionKey, cfg.EncryptionSalt))
		productos := service.NewProductoService(repository.NewProductoRepository(db), emisorRepo)

		ctx := cmd.Context()
		emisor, err := emisores.Crear(ctx, dto.CrearEmisorRequest{
			Nombre:       "Bodega Demo",
			RUC:          ruc,
			SunatUsuario: "MODDATOS",
			SunatClave:   "moddatos",
		})
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintf(cmd.OutOrStdout(), "El emisor con RUC %s ya existe\n", ruc)
			return nil
		}
		if err != nil {
			return err
		}

		demo := []struct {
			desc, unidad, precio string
		}{
			{"Arroz Costeño 5kg", "BOLSA", "22.50"},
			{"Aceite Primor 1L", "UNIDAD", "9.90"},
			{"Azúcar rubia", "KILOGRAMO", "4.20"},
		}
		for _, p := range demo {
			if _, err := productos.Crear(ctx, dto.CrearProductoRequest{
				EmisorID:    emisor.ID,
				Descripcion: p.desc,
				Unidad:      p.unidad,
				PrecioBase:  decimal.RequireFromString(p.precio),
			}); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Emisor %s creado (id %s) con %d productos\n", emisor.RUC, emisor.ID, len(demo))
		return nil
	},
}

func init() {
	sembrarCmd.Flags().String("ruc", "20000000001", "RUC del emisor de demo")
}
