package infra

// pdf.go: local proof for credit notes, which never go through the sidecar.
// Ticket-sized page with emisor header, reference to the reversed document,
// item table and totals.

import (
	"bytes"
	"fmt"

	"factumovil/internal/model"

	"github.com/go-pdf/fpdf"
)

// Motivos de nota de crédito (catálogo 09 de SUNAT) printed on the proof.
var motivosNotaCredito = map[string]string{
	"01": "Anulación de la operación",
	"02": "Anulación por error en el RUC",
	"03": "Corrección por error en la descripción",
	"06": "Devolución total",
}

// GenerarNotaCreditoPDF renders the proof of a credit note and returns the PDF bytes.
func GenerarNotaCreditoPDF(nc *model.Comprobante, emisor *model.Emisor) ([]byte, error) {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 80, Ht: 160},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(contentW, 6, tr(emisor.Nombre), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 4, "RUC "+emisor.RUC, "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentW, 5, tr("NOTA DE CRÉDITO ELECTRÓNICA"), "", 1, "C", false, 0, "")
	pdf.CellFormat(contentW, 5, nc.SerieNumero(), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, "Fecha: "+nc.Fecha.Format("02/01/2006"), "", 1, "L", false, 0, "")
	cliente := nc.ClienteNombre
	if nc.ClienteDocumento != nil && *nc.ClienteDocumento != "" {
		cliente += " - " + *nc.ClienteDocumento
	}
	pdf.CellFormat(contentW, 4, tr("Cliente: "+cliente), "", 1, "L", false, 0, "")
	if nc.ComprobanteReferencia != nil {
		pdf.CellFormat(contentW, 4, "Documento que modifica: "+*nc.ComprobanteReferencia, "", 1, "L", false, 0, "")
	}
	if nc.MotivoCodigo != nil {
		motivo := *nc.MotivoCodigo
		if desc, ok := motivosNotaCredito[motivo]; ok {
			motivo += " - " + desc
		}
		pdf.MultiCell(contentW, 4, tr("Motivo: "+motivo), "", "L", false)
	}
	pdf.Ln(1)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(1)

	col1 := contentW * 0.14
	col2 := contentW * 0.56
	col3 := contentW * 0.30

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 5, "Cant", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 5, tr("Descripción"), "B", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 5, "Importe", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for _, item := range nc.Items {
		desc := item.Descripcion
		if len([]rune(desc)) > 28 {
			desc = string([]rune(desc)[:27]) + "..."
		}
		pdf.CellFormat(col1, 5, item.Cantidad.String(), "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, tr(desc), "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 5, "S/ "+item.Total.StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.Ln(1)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(1)

	totalRow := func(label string, value string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 8)
		pdf.CellFormat(col1+col2, 5, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 5, value, "", 1, "R", false, 0, "")
	}
	totalRow("Subtotal:", "S/ "+nc.Subtotal.StringFixed(2), false)
	totalRow("IGV (18%):", "S/ "+nc.IGV.StringFixed(2), false)
	totalRow("TOTAL:", "S/ "+nc.Total.StringFixed(2), true)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render nota de credito: %w", err)
	}
	return buf.Bytes(), nil
}
