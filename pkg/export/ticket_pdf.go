package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// TicketDocument carries everything printed on an attendee ticket.
type TicketDocument struct {
	Issuer         string
	EventTitle     string
	EventDate      string
	EventTime      string
	Venue          string
	City           string
	TicketName     string
	AttendeeName   string
	AttendeeEmail  string
	RegistrationID string
	Price          string
}

// TicketPDFRenderer renders attendee tickets into PDF bytes.
type TicketPDFRenderer struct{}

// NewTicketPDFRenderer constructs a ticket renderer.
func NewTicketPDFRenderer() *TicketPDFRenderer {
	return &TicketPDFRenderer{}
}

// Render creates a single-page A5 ticket document.
func (r *TicketPDFRenderer) Render(doc TicketDocument) ([]byte, error) {
	if doc.EventTitle == "" {
		return nil, fmt.Errorf("ticket requires an event title")
	}
	if doc.RegistrationID == "" {
		return nil, fmt.Errorf("ticket requires a registration id")
	}

	pdf := gofpdf.New("L", "mm", "A5", "")
	pdf.SetMargins(12, 14, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 8, strings.ToUpper(doc.Issuer), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 18)
	pdf.MultiCell(0, 9, doc.EventTitle, "", "L", false)
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 11)
	when := doc.EventDate
	if doc.EventTime != "" {
		when = fmt.Sprintf("%s at %s", doc.EventDate, doc.EventTime)
	}
	pdf.CellFormat(0, 6, when, "", 1, "L", false, 0, "")
	if where := joinNonEmpty(doc.Venue, doc.City); where != "" {
		pdf.CellFormat(0, 6, where, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Ticket", "", 0, "L", false, 0, "")
	pdf.CellFormat(60, 6, "Attendee", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Price", "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(40, 6, doc.TicketName, "", 0, "L", false, 0, "")
	pdf.CellFormat(60, 6, doc.AttendeeName, "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, doc.Price, "", 1, "L", false, 0, "")
	if doc.AttendeeEmail != "" {
		pdf.CellFormat(40, 6, "", "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, doc.AttendeeEmail, "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Courier", "B", 12)
	pdf.CellFormat(0, 8, doc.RegistrationID, "1", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 8)
	pdf.CellFormat(0, 5, "Present this reference at the entrance.", "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render ticket pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
