package handler

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"factumovil/internal/apierror"
	"factumovil/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxArchivo = 10 << 20

type ExtraccionHandler struct{ svc service.ExtraccionService }

func NewExtraccionHandler(svc service.ExtraccionService) *ExtraccionHandler {
	return &ExtraccionHandler{svc: svc}
}

// DesdeImagen godoc
// @Summary      Borrador desde foto
// @Description  Extrae un borrador de comprobante desde la foto de una nota de venta.
// @Tags         extraccion
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        emisor_id formData string true "UUID del emisor"
// @Param        archivo   formData file   true "Imagen JPEG, PNG o WEBP"
// @Success      200  {object} dto.BorradorComprobante
// @Failure      503  {object} apierror.APIError
// @Router       /v1/extraccion/imagen [post]
func (h *ExtraccionHandler) DesdeImagen(c *gin.Context) {
	emisorID, data, _, ok := leerArchivo(c)
	if !ok {
		return
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{"archivo": "debe ser una imagen"}))
		return
	}
	resp, err := h.svc.DesdeImagen(c.Request.Context(), emisorID, data, mime)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DesdeAudio godoc
// @Summary      Borrador desde audio
// @Description  Extrae un borrador de comprobante desde un pedido dictado.
// @Tags         extraccion
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        emisor_id formData string true "UUID del emisor"
// @Param        archivo   formData file   true "Audio WAV o MP3"
// @Success      200  {object} dto.BorradorComprobante
// @Failure      503  {object} apierror.APIError
// @Router       /v1/extraccion/audio [post]
func (h *ExtraccionHandler) DesdeAudio(c *gin.Context) {
	emisorID, data, nombre, ok := leerArchivo(c)
	if !ok {
		return
	}
	formato := formatoAudio(nombre, http.DetectContentType(data))
	if formato == "" {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{"archivo": "formato de audio no soportado (wav, mp3)"}))
		return
	}
	resp, err := h.svc.DesdeAudio(c.Request.Context(), emisorID, data, formato)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// leerArchivo reads the emisor_id field and the "archivo" upload.
func leerArchivo(c *gin.Context) (uuid.UUID, []byte, string, bool) {
	emisorID, err := uuid.Parse(c.PostForm("emisor_id"))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{"emisor_id": "required"}))
		return uuid.Nil, nil, "", false
	}
	fh, err := c.FormFile("archivo")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{"archivo": "required"}))
		return uuid.Nil, nil, "", false
	}
	if fh.Size > maxArchivo {
		c.JSON(http.StatusRequestEntityTooLarge, apierror.WithCode(apierror.CodigoValidacion, "El archivo supera 10 MB"))
		return uuid.Nil, nil, "", false
	}
	f, err := fh.Open()
	if err != nil {
		_ = c.Error(err)
		return uuid.Nil, nil, "", false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxArchivo))
	if err != nil {
		_ = c.Error(err)
		return uuid.Nil, nil, "", false
	}
	return emisorID, data, fh.Filename, true
}

func formatoAudio(nombre, mime string) string {
	switch {
	case mime == "audio/wave", mime == "audio/wav", mime == "audio/x-wav":
		return "wav"
	case mime == "audio/mpeg":
		return "mp3"
	}
	switch strings.ToLower(filepath.Ext(nombre)) {
	case ".wav":
		return "wav"
	case ".mp3":
		return "mp3"
	}
	return ""
}
