package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"factumovil/internal/infra"
	"factumovil/internal/repository"
	"factumovil/internal/service"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

var extraerCmd = &cobra.Command{
	Use:   "extraer [archivo]",
	Short: "Extrae un borrador de comprobante desde una foto o un audio",
	Long: `Envía el archivo al modelo configurado (LLM_API_KEY, LLM_BASE_URL, LLM_MODEL)
e imprime el borrador en JSON.

Con --emisor el borrador se concilia contra el catálogo del emisor en
DATABASE_URL, igual que el endpoint /v1/extraccion. Sin él se imprime la
respuesta del modelo tal cual.`,
	Example: `  factuctl extraer nota.jpg
  factuctl extraer pedido.wav --emisor 6f1c...`,
	Args: cobra.ExactArgs(1),
	RunE: runExtraer,
}

func init() {
	extraerCmd.Flags().String("emisor", "", "UUID del emisor para conciliar contra su catálogo")
	extraerCmd.Flags().Duration("timeout", 2*time.Minute, "Tiempo máximo de la llamada al modelo")
}

func runExtraer(cmd *cobra.Command, args []string) error {
	emisor, _ := cmd.Flags().GetString("emisor")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	extractor := infra.NewExtractor(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)
	audio := esAudio(args[0])

	var out any
	if emisor == "" {
		if audio != "" {
			out, err = extractor.ExtraerAudio(ctx, data, audio, nil)
		} else {
			out, err = extractor.ExtraerImagen(ctx, data, http.DetectContentType(data), nil)
		}
	} else {
		out, err = extraerConciliado(ctx, extractor, emisor, data, audio)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func extraerConciliado(ctx context.Context, extractor *infra.Extractor, emisor string, data []byte, audio string) (any, error) {
	emisorID, err := uuid.Parse(emisor)
	if err != nil {
		return nil, fmt.Errorf("--emisor: %w", err)
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("conectando a postgres: %w", err)
	}
	conciliador := service.NewConciliador(repository.NewClienteRepository(db), repository.NewProductoRepository(db))
	svc := service.NewExtraccionService(extractor, conciliador, service.NewFusionador(conciliador, clockwork.NewRealClock()))

	if audio != "" {
		return svc.DesdeAudio(ctx, emisorID, data, audio)
	}
	return svc.DesdeImagen(ctx, emisorID, data, http.DetectContentType(data))
}

func esAudio(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "wav"
	case ".mp3":
		return "mp3"
	}
	return ""
}
