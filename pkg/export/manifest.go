// Package export renders printable artifacts for courier handoff.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/virtualpost/forwarding-api/internal/models"
)

// ManifestRenderer produces the dispatch manifest PDF that accompanies a
// physical parcel to the courier counter.
type ManifestRenderer struct{}

// NewManifestRenderer constructs a renderer.
func NewManifestRenderer() *ManifestRenderer {
	return &ManifestRenderer{}
}

// Render creates a single-page manifest for a dispatched request.
func (m *ManifestRenderer) Render(req *models.ForwardingRequest) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("manifest requires a record")
	}
	if req.Courier == nil || req.TrackingNumber == nil {
		return nil, fmt.Errorf("manifest requires courier and tracking number")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "DISPATCH MANIFEST", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Request %s", req.ID), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	rows := [][2]string{
		{"Mail item", req.SourceMailItemID},
		{"Account", req.OwnerUserID},
		{"Destination", req.DestinationAddress},
		{"Courier", *req.Courier},
		{"Tracking number", *req.TrackingNumber},
	}
	if req.DispatchedAt != nil {
		rows = append(rows, [2]string{"Dispatched at", req.DispatchedAt.UTC().Format(time.RFC3339)})
	}
	if req.DeliveredAt != nil {
		rows = append(rows, [2]string{"Delivered at", req.DeliveredAt.UTC().Format(time.RFC3339)})
	}

	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(45, 8, row[0], "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(135, 8, row[1], "1", 1, "", false, 0, "")
	}

	if req.AdminNotes != nil && *req.AdminNotes != "" {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 8, "Notes", "", 1, "", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 6, *req.AdminNotes, "1", "", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render manifest: %w", err)
	}
	return buf.Bytes(), nil
}
