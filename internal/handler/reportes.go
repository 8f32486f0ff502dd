package handler

import (
	"net/http"
	"strconv"

	"factumovil/internal/apierror"
	"factumovil/internal/service"

	"github.com/gin-gonic/gin"
)

type ReportesHandler struct{ svc service.ReporteService }

func NewReportesHandler(svc service.ReporteService) *ReportesHandler {
	return &ReportesHandler{svc: svc}
}

// VentasPorMes: GET /v1/reportes/ventas-mensuales?emisor_id=...&anio=2026
func (h *ReportesHandler) VentasPorMes(c *gin.Context) {
	emisorID, ok := queryEmisor(c)
	if !ok {
		return
	}
	anio, ok := queryAnio(c)
	if !ok {
		return
	}
	resp, err := h.svc.VentasPorMes(c.Request.Context(), emisorID, anio)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ReportesHandler) TopProductos(c *gin.Context) {
	emisorID, ok := queryEmisor(c)
	if !ok {
		return
	}
	anio, ok := queryAnio(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 || limit > 50 {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{"limit": "1..50"}))
		return
	}
	resp, err := h.svc.TopProductos(c.Request.Context(), emisorID, anio, limit)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func queryAnio(c *gin.Context) (int, bool) {
	anio, err := strconv.Atoi(c.Query("anio"))
	if err != nil || anio < 2000 || anio > 2100 {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{"anio": "required"}))
		return 0, false
	}
	return anio, true
}
