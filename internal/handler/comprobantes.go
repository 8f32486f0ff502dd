package handler

import (
	"net/http"

	"factumovil/internal/dto"
	"factumovil/internal/model"
	"factumovil/internal/service"

	"github.com/gin-gonic/gin"
)

type ComprobantesHandler struct{ svc service.ComprobanteService }

func NewComprobantesHandler(svc service.ComprobanteService) *ComprobantesHandler {
	return &ComprobantesHandler{svc: svc}
}

// Emitir godoc
// @Summary      Emitir boleta o factura
// @Description  Valida el formulario, concilia cliente y productos, numera el comprobante y lo envía a SUNAT.
// @Description  Con cola Redis responde 202 en estado PROCESANDO; sin cola responde 201 con el estado final.
// @Tags         comprobantes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.EmitirComprobanteRequest true "Formulario confirmado"
// @Success      201  {object} dto.ComprobanteResponse
// @Success      202  {object} dto.ComprobanteResponse
// @Failure      422  {object} apierror.ValidationError
// @Failure      500  {object} apierror.APIError
// @Router       /v1/comprobantes [post]
func (h *ComprobantesHandler) Emitir(c *gin.Context) {
	var req dto.EmitirComprobanteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Emitir(c.Request.Context(), req)
	if err != nil {
		responderError(c, err)
		return
	}
	status := http.StatusCreated
	if resp.Estado == model.EstadoProcesando {
		status = http.StatusAccepted
	}
	c.JSON(status, resp)
}

// PreValidar godoc
// @Summary      Pre-validar comprobante
// @Description  Envía el formulario al validador de SUNAT sin numerarlo ni guardarlo.
// @Tags         comprobantes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.EmitirComprobanteRequest true "Formulario"
// @Success      200  {object} dto.ValidacionResponse
// @Failure      422  {object} apierror.ValidationError
// @Failure      502  {object} apierror.APIError
// @Router       /v1/comprobantes/validar [post]
func (h *ComprobantesHandler) PreValidar(c *gin.Context) {
	var req dto.EmitirComprobanteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.PreValidar(c.Request.Context(), req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Listar godoc
// @Summary      Listar comprobantes
// @Tags         comprobantes
// @Produce      json
// @Security     BearerAuth
// @Param        emisor_id query string true  "UUID del emisor"
// @Param        tipo      query string false "BOLETA | FACTURA | NOTA_CREDITO"
// @Param        estado    query string false "PROCESANDO | ACEPTADO | RECHAZADO | FALLO"
// @Param        page      query int    false "Página"
// @Param        limit     query int    false "Tamaño de página (máx. 100)"
// @Success      200  {object} dto.ComprobanteListResponse
// @Router       /v1/comprobantes [get]
func (h *ComprobantesHandler) Listar(c *gin.Context) {
	var filter dto.ComprobanteFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.Listar(c.Request.Context(), filter)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Obtener godoc
// @Summary      Obtener comprobante
// @Tags         comprobantes
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "UUID del comprobante"
// @Success      200  {object} dto.ComprobanteResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/comprobantes/{id} [get]
func (h *ComprobantesHandler) Obtener(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Obtener(c.Request.Context(), id)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DescargarPDF godoc
// @Summary      Descargar PDF
// @Tags         comprobantes
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id path string true "UUID del comprobante"
// @Success      200  {file} binary
// @Failure      404  {object} apierror.APIError
// @Router       /v1/comprobantes/{id}/pdf [get]
func (h *ComprobantesHandler) DescargarPDF(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	pdf, nombre, err := h.svc.ObtenerPDF(c.Request.Context(), id)
	if err != nil {
		responderError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+nombre+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// EmitirNotaCredito godoc
// @Summary      Emitir nota de crédito
// @Description  Revierte un comprobante ACEPTADO. La nota se numera en NC01.
// @Tags         comprobantes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                 true "UUID del comprobante original"
// @Param        body body dto.NotaCreditoRequest true "Motivo (01, 02, 03, 06)"
// @Success      201  {object} dto.ComprobanteResponse
// @Failure      404  {object} apierror.APIError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/comprobantes/{id}/nota-credito [post]
func (h *ComprobantesHandler) EmitirNotaCredito(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.NotaCreditoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.EmitirNotaCredito(c.Request.Context(), id, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}
