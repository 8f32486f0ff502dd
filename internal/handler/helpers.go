package handler

import (
	"errors"
	"net/http"
	"reflect"

	"factumovil/internal/apierror"
	"factumovil/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// decimal.Decimal validates as a float so min=0 and gt=0 work.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds the JSON body and runs the validator tags. On
// failure the response is already written and the caller must return.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode(apierror.CodigoValidacion, "JSON invalido: "+err.Error()))
		return false
	}
	return validar(c, req)
}

// bindQuery is bindAndValidate for query strings.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode(apierror.CodigoValidacion, "Parametros invalidos: "+err.Error()))
		return false
	}
	return validar(c, req)
}

func validar(c *gin.Context, req interface{}) bool {
	if err := validate.Struct(req); err != nil {
		var ves validator.ValidationErrors
		if !errors.As(err, &ves) {
			c.JSON(http.StatusBadRequest, apierror.WithCode(apierror.CodigoValidacion, err.Error()))
			return false
		}
		fields := make(map[string]string, len(ves))
		for _, fe := range ves {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// paramID parses a uuid path parameter, writing a 400 when malformed.
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode(apierror.CodigoValidacion, "ID invalido"))
		return uuid.Nil, false
	}
	return id, true
}

// queryEmisor reads the mandatory emisor_id query parameter.
func queryEmisor(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Query("emisor_id"))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{"emisor_id": "required"}))
		return uuid.Nil, false
	}
	return id, true
}

// responderError maps service errors to status codes. Unknown errors are
// attached to the context and rendered by middleware.ErrorHandler.
func responderError(c *gin.Context, err error) {
	var (
		verr *service.ValidationError
		rerr *service.ReconciliationError
		serr *service.SubmissionError
		terr *service.TaskTimeoutError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(verr.Fields))
	case errors.Is(err, service.ErrComprobanteNoEncontrado),
		errors.Is(err, service.ErrEmisorNoEncontrado),
		errors.Is(err, service.ErrProductoNoEncontrado),
		errors.Is(err, service.ErrClienteNoEncontrado),
		errors.Is(err, service.ErrPDFNoDisponible):
		c.JSON(http.StatusNotFound, apierror.WithCode(apierror.CodigoNoEncontrado, err.Error()))
	case errors.As(err, &rerr):
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.WithCode(apierror.CodigoConciliacion, rerr.Error()))
	case errors.As(err, &terr):
		c.JSON(http.StatusGatewayTimeout, apierror.WithCode(apierror.CodigoTimeout, terr.Error()))
	case errors.As(err, &serr):
		c.JSON(http.StatusBadGateway, apierror.WithCode(apierror.CodigoSunat, serr.Mensaje))
	case errors.Is(err, service.ErrExtraccionDeshabilitada):
		c.JSON(http.StatusServiceUnavailable, apierror.New("La extraccion con IA no esta configurada"))
	default:
		_ = c.Error(err)
	}
}
