package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"factumovil/internal/infra"
	"factumovil/internal/model"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SunatGateway is the asynchronous SUNAT sidecar contract. Satisfied by
// infra.SunatClient and infra.MockSunatClient.
type SunatGateway interface {
	Emitir(ctx context.Context, req infra.EmitirRequest) (string, error)
	EstadoTarea(ctx context.Context, taskID string) (*infra.TareaEstado, error)
	Validar(ctx context.Context, req infra.EmitirRequest) (*infra.ValidacionResultado, error)
	Health(ctx context.Context) (*infra.SunatHealth, error)
}

// Fase is the emission lifecycle of one document.
type Fase string

const (
	FaseBorrador Fase = "DRAFT"
	FaseEnviando Fase = "SUBMITTING"
	FaseConsulta Fase = "POLLING"
	FaseAceptado Fase = "ACCEPTED"
	FaseFallido  Fase = "FAILED"
)

const (
	mensajeFallo  = "Error desconocido"
	formatoFecha  = "02/01/2006"
	igvPorcentaje = 18
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultTaskTimeout  = 300 * time.Second
)

// Orquestador submits a document to SUNAT and polls the resulting task until
// it completes, fails or exceeds the timeout. There is no retry: a failed
// document keeps its number and a new emission takes a fresh one.
type Orquestador struct {
	gateway  SunatGateway
	cb       *infra.CircuitBreaker
	clock    clockwork.Clock
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger
}

type OrquestadorConfig struct {
	Gateway  SunatGateway
	CB       *infra.CircuitBreaker // optional
	Clock    clockwork.Clock
	Interval time.Duration
	Timeout  time.Duration
}

func NewOrquestador(cfg OrquestadorConfig) *Orquestador {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTaskTimeout
	}
	return &Orquestador{
		gateway:  cfg.Gateway,
		cb:       cfg.CB,
		clock:    cfg.Clock,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		log:      infra.Componente("orquestador"),
	}
}

// Emitir drives comp to a terminal state and records the outcome on it:
// ACEPTADO with the proof, RECHAZADO when SUNAT refused the document, FALLO
// for submission errors, failed tasks and timeouts. The returned error is a
// *SubmissionError or *TaskTimeoutError in the failure cases. If ctx ends
// mid-poll, comp is left untouched and ctx.Err() is returned.
func (o *Orquestador) Emitir(ctx context.Context, comp *model.Comprobante, cliente *model.Cliente, cred infra.SunatCredenciales) error {
	lg := o.log.With().Str("comprobante_id", comp.ID.String()).Str("serie_numero", comp.SerieNumero()).Logger()

	lg.Debug().Str("fase", string(FaseEnviando)).Msg("enviando a SUNAT")
	req := ConstruirSolicitud(comp, cliente, cred)

	var taskID string
	enviar := func() error {
		id, err := o.gateway.Emitir(ctx, req)
		taskID = id
		return err
	}
	var err error
	if o.cb != nil {
		err = o.cb.Execute(enviar)
	} else {
		err = enviar()
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := err.Error()
		var remote *infra.SunatRemoteError
		if errors.As(err, &remote) {
			msg = remote.Message
		}
		lg.Warn().Err(err).Str("fase", string(FaseFallido)).Msg("envio rechazado")
		marcar(comp, model.EstadoFallo, msg)
		return &SubmissionError{Mensaje: msg, Err: err}
	}
	comp.TaskID = &taskID
	lg = lg.With().Str("task_id", taskID).Logger()
	lg.Debug().Str("fase", string(FaseConsulta)).Msg("tarea aceptada")

	inicio := o.clock.Now()
	for o.clock.Since(inicio) < o.timeout {
		estado, err := o.gateway.EstadoTarea(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lg.Warn().Err(err).Msg("consulta de estado fallida")
			marcar(comp, model.EstadoFallo, err.Error())
			return &SubmissionError{Mensaje: err.Error(), Err: err}
		}

		switch estado.Status {
		case infra.TareaCompletada:
			return o.completar(lg, comp, estado.Result)
		case infra.TareaFallida:
			msg := mensajeFallo
			if estado.Result != nil && estado.Result.Error != "" {
				msg = estado.Result.Error
			}
			lg.Warn().Str("fase", string(FaseFallido)).Str("mensaje", msg).Msg("tarea fallida")
			marcar(comp, model.EstadoFallo, msg)
			return &SubmissionError{Mensaje: msg}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.clock.After(o.interval):
		}
	}

	lg.Warn().Dur("timeout", o.timeout).Str("fase", string(FaseFallido)).Msg("tarea sin respuesta")
	marcar(comp, model.EstadoFallo, model.MensajeTimeout)
	return &TaskTimeoutError{TaskID: taskID}
}

func (o *Orquestador) completar(lg zerolog.Logger, comp *model.Comprobante, res *infra.TareaResultado) error {
	if res == nil || !res.Success {
		msg := mensajeFallo
		if res != nil {
			switch {
			case res.Error != "":
				msg = res.Error
			case res.Message != "":
				msg = res.Message
			}
		}
		lg.Warn().Str("fase", string(FaseFallido)).Str("mensaje", msg).Msg("SUNAT rechazo el comprobante")
		marcar(comp, model.EstadoRechazado, msg)
		return &SubmissionError{Mensaje: msg}
	}

	if res.Serie != "" {
		comp.Serie = res.Serie
	}
	if res.Numero != "" {
		comp.Numero = res.Numero
	}
	if res.Total != nil {
		comp.Total = decimal.NewFromFloat(*res.Total)
	}
	if res.PDF != nil && res.PDF.Content != "" {
		pdf, nombre := res.PDF.Content, res.PDF.Filename
		comp.PDFBase64 = &pdf
		comp.PDFNombre = &nombre
	}
	marcar(comp, model.EstadoAceptado, res.Message)
	lg.Info().Str("fase", string(FaseAceptado)).Msg("comprobante aceptado")
	return nil
}

func marcar(comp *model.Comprobante, estado, mensaje string) {
	comp.Estado = estado
	if mensaje != "" {
		comp.SunatMensaje = &mensaje
	}
}

// ConstruirSolicitud builds the sidecar payload. Amounts are rounded to cents
// here and only here.
func ConstruirSolicitud(comp *model.Comprobante, cliente *model.Cliente, cred infra.SunatCredenciales) infra.EmitirRequest {
	tipo := model.TipoBoleta
	if comp.Tipo == model.TipoFactura {
		tipo = model.TipoFactura
	}

	req := infra.EmitirRequest{
		TipoDocumento: tipo,
		Fecha:         comp.Fecha.Format(formatoFecha),
		Cliente:       solicitudCliente(comp, cliente),
		Productos:     make([]infra.SunatProducto, 0, len(comp.Items)),
		Resumen: infra.SunatResumen{
			Serie:    comp.Serie,
			Numero:   comp.Numero,
			SubTotal: centimos(comp.Subtotal),
			IGVTotal: centimos(comp.IGV),
			Total:    centimos(comp.Total),
		},
		IDRemitente:  comp.ID.String(),
		Credenciales: cred,
	}
	for _, it := range comp.Items {
		igv := 0
		if it.TieneIGV {
			igv = igvPorcentaje
		}
		req.Productos = append(req.Productos, infra.SunatProducto{
			Cantidad:     it.Cantidad.InexactFloat64(),
			UnidadMedida: it.Unidad,
			Descripcion:  it.Descripcion,
			PrecioBase:   centimos(it.PrecioUnitario),
			IGV:          igv,
			PrecioTotal:  centimos(it.Total),
		})
	}
	return req
}

// solicitudCliente prefers the live client record and falls back to the
// snapshot stored on the document.
func solicitudCliente(comp *model.Comprobante, cliente *model.Cliente) infra.SunatCliente {
	var dni, ruc, nombre string
	if cliente != nil {
		nombre = cliente.Nombre
		if cliente.DNI != nil {
			dni = *cliente.DNI
		}
		if cliente.RUC != nil {
			ruc = *cliente.RUC
		}
	} else {
		nombre = comp.ClienteNombre
		if comp.ClienteDocumento != nil {
			switch tipoDocumento(*comp.ClienteDocumento) {
			case docDNI:
				dni = *comp.ClienteDocumento
			case docRUC:
				ruc = *comp.ClienteDocumento
			}
		}
	}

	if comp.Tipo == model.TipoFactura {
		return infra.SunatCliente{RUC: ruc}
	}
	return infra.SunatCliente{DNI: dni, Nombre: nombre}
}

func centimos(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

// formatNumero left-pads a document number with zeros.
func formatNumero(n, digitos int) string {
	return fmt.Sprintf("%0*d", digitos, n)
}
