package service

import (
	"time"

	"factumovil/internal/model"

	"github.com/google/uuid"
)

// Motivos de nota de crédito accepted by the emitter.
var motivosNotaCredito = map[string]bool{"01": true, "02": true, "03": true, "06": true}

const digitosNotaCredito = 4

// DerivarNotaCredito builds the credit note reversing orig. existentes is the
// number of credit notes the emisor already has. The note is accepted
// immediately; it is not submitted to SUNAT.
func DerivarNotaCredito(orig *model.Comprobante, motivo string, existentes int64, hoy time.Time) (*model.Comprobante, error) {
	if !motivosNotaCredito[motivo] {
		return nil, NewValidationError("motivo", "Motivo de nota de crédito inválido")
	}
	if orig.Tipo == model.TipoNotaCredito {
		return nil, NewValidationError("comprobante", "No se puede emitir una nota de crédito sobre otra nota de crédito")
	}
	if orig.Estado != model.EstadoAceptado {
		return nil, NewValidationError("comprobante", "Solo se puede anular un comprobante aceptado")
	}

	ref := orig.SerieNumero()
	m := motivo
	nc := &model.Comprobante{
		EmisorID:              orig.EmisorID,
		ClienteID:             orig.ClienteID,
		ClienteNombre:         orig.ClienteNombre,
		ClienteDocumento:      orig.ClienteDocumento,
		Tipo:                  model.TipoNotaCredito,
		Serie:                 model.SerieNotaCredito,
		Numero:                formatNumero(int(existentes)+1, digitosNotaCredito),
		Fecha:                 fechaDe(hoy),
		Subtotal:              orig.Subtotal,
		IGV:                   orig.IGV,
		Total:                 orig.Total,
		Estado:                model.EstadoAceptado,
		ComprobanteReferencia: &ref,
		MotivoCodigo:          &m,
		Items:                 make([]model.ComprobanteItem, len(orig.Items)),
	}
	for i, it := range orig.Items {
		it.ID = uuid.Nil
		it.ComprobanteID = uuid.Nil
		nc.Items[i] = it
	}
	return nc, nil
}

// zonaPeru is Peru's civil time (no daylight saving).
var zonaPeru = time.FixedZone("PET", -5*60*60)

// fechaDe returns the Peruvian calendar date of t as midnight UTC.
func fechaDe(t time.Time) time.Time {
	y, m, d := t.In(zonaPeru).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
