// Package receipt renders printable payment receipts for appointments
// collected at the front desk.
package receipt

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/wolfman30/lumeskin-platform/internal/models"
)

// ErrNotPaid is returned for appointments whose payment has not been collected.
var ErrNotPaid = errors.New("receipt: appointment is not paid")

const clinicName = "Lume Skin Clinic"

// Render builds an A4 PDF receipt for a paid appointment.
func Render(appt models.Appointment, issuedAt time.Time) ([]byte, error) {
	if appt.PaymentStatus != models.PaymentPaid {
		return nil, ErrNotPaid
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Receipt "+appt.ID, false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 12, clinicName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 8, "Payment receipt", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	addDetail(pdf, "Receipt No", appt.ID)
	addDetail(pdf, "Issued", issuedAt.UTC().Format("2006-01-02 15:04 MST"))
	addDetail(pdf, "Patient", appt.PatientName)
	addDetail(pdf, "Patient ID", appt.PatientID)
	addDetail(pdf, "Doctor", appt.DoctorName)
	addDetail(pdf, "Date", appt.Date)
	addDetail(pdf, "Time", appt.Time)
	addDetail(pdf, "Status", string(appt.Status))
	addDetail(pdf, "Payment", string(appt.PaymentStatus))

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 9)
	pdf.MultiCell(0, 5, "Payment was collected at the front desk. Keep this receipt for your records.", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("receipt: render %s: %w", appt.ID, err)
	}
	return buf.Bytes(), nil
}

func addDetail(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(45, 9, label, "1", 0, "", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.MultiCell(0, 9, value, "1", "", false)
}

// Filename is the download name used in Content-Disposition.
func Filename(appt models.Appointment) string {
	return fmt.Sprintf("lume-receipt-%s.pdf", appt.ID)
}
