// Package export renders reviewed tickets into an XLSX workbook. Nothing is
// persisted server-side: the client hands back its reviewed tickets and gets
// a spreadsheet.
package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/quarryops/ticketscan/constants"
	"github.com/quarryops/ticketscan/internal/extract"
)

type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// TicketsXLSX returns an XLSX workbook (as bytes) with one row per ticket.
// Columns follow the fixed field order, then overall confidence, status, and
// the source image URL.
func (s *Service) TicketsXLSX(tickets []extract.Ticket) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Tickets"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headers := make([]string, 0, len(constants.TicketFieldNames)+3)
	headers = append(headers, constants.TicketFieldNames...)
	headers = append(headers, "Overall Confidence", "Status", "Source Image")
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for row, t := range tickets {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
		col := 1
		for _, name := range constants.TicketFieldNames {
			write(col, t.Fields[name].Value)
			col++
		}
		write(col, t.OverallConfidence)
		write(col+1, string(t.Status))
		write(col+2, t.ImageURL)
	}

	// Widen the identity and notes columns a bit.
	_ = f.SetColWidth(sheet, "A", "A", 16) // ticketNumber
	_ = f.SetColWidth(sheet, "B", "C", 12) // date, time
	_ = f.SetColWidth(sheet, "D", "D", 20) // materialType
	_ = f.SetColWidth(sheet, "T", "T", 40) // notes

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(tickets),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
