package infra

// extractor.go: reads a photographed sales note or a dictated order and
// returns a best-effort draft. Talks to any OpenAI-compatible endpoint.

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"factumovil/internal/dto"
	"factumovil/internal/model"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

const extractorTimeout = 90 * time.Second

// ErrExtractorDisabled is returned when no API key is configured.
var ErrExtractorDisabled = errors.New("extractor: LLM_API_KEY not configured")

const instruccionesExtraccion = `Eres un asistente de facturación para un pequeño negocio peruano.
Lee la nota de venta y responde SOLO con un objeto JSON con esta forma:
{"cliente":{"fecha":"DD/MM/YYYY","cliente":"","dni":"","ruc":"","telefono":""},
 "productos":[{"productId":"","cantidad":0,"unidad_medida":"UNIDAD|KILOGRAMO|CAJA|BOLSA",
 "descripcion":"","precio_base":0,"igv":18,"precio_total":0}],"total":0}
Usa null cuando un dato no se pueda leer. "igv" es 18 si el producto está gravado y 0 si no.
Si un producto coincide con el catálogo, copia su id en "productId".`

// Extractor turns images and audio into dto.BorradorIA using a chat model.
type Extractor struct {
	client  openai.Client
	model   string
	enabled bool
}

func NewExtractor(apiKey, baseURL, model string) *Extractor {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: extractorTimeout}),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Extractor{
		client:  openai.NewClient(opts...),
		model:   model,
		enabled: apiKey != "",
	}
}

// ExtraerImagen reads a photo of a handwritten or printed sales note.
func (e *Extractor) ExtraerImagen(ctx context.Context, imagen []byte, mimeType string, catalogo []model.Producto) (*dto.BorradorIA, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imagen))
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart("Extrae los datos de esta nota de venta."),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
	}
	return e.extraer(ctx, parts, catalogo)
}

// ExtraerAudio reads a dictated order. formato is "wav" or "mp3".
func (e *Extractor) ExtraerAudio(ctx context.Context, audio []byte, formato string, catalogo []model.Producto) (*dto.BorradorIA, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart("Transcribe el pedido dictado y extrae sus datos."),
		openai.InputAudioContentPart(openai.ChatCompletionContentPartInputAudioInputAudioParam{
			Data:   base64.StdEncoding.EncodeToString(audio),
			Format: formato,
		}),
	}
	return e.extraer(ctx, parts, catalogo)
}

func (e *Extractor) extraer(ctx context.Context, parts []openai.ChatCompletionContentPartUnionParam, catalogo []model.Producto) (*dto.BorradorIA, error) {
	if !e.enabled {
		return nil, ErrExtractorDisabled
	}
	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: e.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instruccionesExtraccion + "\n\n" + describirCatalogo(catalogo)),
			openai.UserMessage(parts),
		},
		MaxTokens:   param.NewOpt[int64](2048),
		Temperature: param.NewOpt[float64](0),
	})
	if err != nil {
		return nil, fmt.Errorf("extractor: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("extractor: no choices in response")
	}
	return ParseBorrador(resp.Choices[0].Message.Content)
}

// ParseBorrador decodes the model answer, tolerating markdown fences and prose
// around the JSON object.
func ParseBorrador(content string) (*dto.BorradorIA, error) {
	raw := extraerJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("extractor: no JSON object in response")
	}
	var b dto.BorradorIA
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, fmt.Errorf("extractor: decode draft: %w", err)
	}
	return &b, nil
}

func extraerJSON(s string) string {
	if start := strings.Index(s, "```json"); start != -1 {
		s = s[start+len("```json"):]
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end < start {
		return ""
	}
	return s[start : end+1]
}

func describirCatalogo(catalogo []model.Producto) string {
	if len(catalogo) == 0 {
		return "Catálogo: (vacío)"
	}
	var sb strings.Builder
	sb.WriteString("Catálogo (id | descripción | unidad | precio base | igv):\n")
	for _, p := range catalogo {
		igv := 0
		if p.TieneIGV {
			igv = 18
		}
		fmt.Fprintf(&sb, "%s | %s | %s | %s | %d\n", p.ID, p.Descripcion, p.Unidad, p.PrecioBase.StringFixed(2), igv)
	}
	return sb.String()
}
