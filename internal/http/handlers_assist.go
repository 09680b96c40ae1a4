package http

import (
	"net/http"

	"pocketbalance/internal/assist"
	"pocketbalance/internal/entry"
)

// scanResponse carries the raw extraction and the spending form it fills.
// The form drops a category outside the configured set.
type scanResponse struct {
	assist.ScanResponse
	Form scannedForm `json:"form"`
}

type scannedForm struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
}

func (s *Server) handleSuggestCategory(w http.ResponseWriter, r *http.Request) {
	var req assist.SuggestRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		respondError(w, r, err)
		return
	}
	resp, err := s.assist.Suggest(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	var req assist.ScanRequest
	if err := decodeJSON(w, r, maxReceiptBody, &req); err != nil {
		respondError(w, r, err)
		return
	}
	resp, err := s.assist.Scan(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var form entry.SpendingForm
	form.ApplyReceipt(assist.ReceiptDraft(resp), s.ledger.Categories())
	writeJSON(w, http.StatusOK, scanResponse{
		ScanResponse: resp,
		Form: scannedForm{
			Description: form.Description,
			Amount:      form.Amount,
			Category:    string(form.Category),
		},
	})
}
