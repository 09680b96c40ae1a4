package http

import (
	"bytes"
	"net/http"

	"pocketbalance/internal/export"
	"pocketbalance/internal/log"
)

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	txs := s.ledger.List()
	if err := export.WriteCSV(&buf, txs); err != nil {
		respondError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Exported transactions",
		log.FieldOperation, log.OpExport, "format", "csv", log.FieldCount, len(txs))
	sendDocument(w, export.ContentType, export.Filename, &buf)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	txs := s.ledger.List()
	if err := export.WriteXLSX(&buf, txs); err != nil {
		respondError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Exported transactions",
		log.FieldOperation, log.OpExport, "format", "xlsx", log.FieldCount, len(txs))
	sendDocument(w, export.XLSXContentType, export.XLSXFilename, &buf)
}
