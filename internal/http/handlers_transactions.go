package http

import (
	"net/http"
	"strings"

	"pocketbalance/internal/core"
	"pocketbalance/internal/entry"
	"pocketbalance/internal/log"
	"pocketbalance/internal/middleware/security"
)

type transactionRequest struct {
	Type        string     `json:"type"`
	Description string     `json:"description"`
	Amount      amountText `json:"amount"`
	Category    string     `json:"category"`
	// AutoCategorize asks the model for a category when none is given.
	AutoCategorize bool `json:"autoCategorize"`
}

type summaryResponse struct {
	TotalIncome   float64 `json:"totalIncome"`
	TotalSpending float64 `json:"totalSpending"`
	Balance       float64 `json:"balance"`
}

type categoriesResponse struct {
	Categories    []string `json:"categories"`
	AssistEnabled bool     `json:"assistEnabled"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs := s.ledger.List()
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		respondError(w, r, err)
		return
	}

	var (
		tx  core.Transaction
		err error
	)
	switch core.Kind(strings.ToLower(strings.TrimSpace(req.Type))) {
	case core.KindIncome:
		tx, err = s.ledger.AddIncome(r.Context(), entry.IncomeForm{
			Description: req.Description,
			Amount:      string(req.Amount),
		})
	case core.KindSpending:
		form := entry.SpendingForm{
			Description: req.Description,
			Amount:      string(req.Amount),
			Category:    core.Category(strings.TrimSpace(req.Category)),
		}
		if form.Category == "" && req.AutoCategorize {
			if !s.limiter.Allow(security.ClientIP(r)) {
				s.rateLimited(w, r)
				return
			}
			if _, err := form.ApplySuggestion(r.Context(), s.assist, s.ledger.Categories()); err != nil {
				respondError(w, r, err)
				return
			}
		}
		tx, err = s.ledger.AddSpending(r.Context(), form)
	default:
		err = core.ErrInvalidKind
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleClearTransactions(w http.ResponseWriter, r *http.Request) {
	s.ledger.Clear(r.Context())
	log.FromContext(r.Context()).InfoContext(r.Context(), "All transactions cleared", log.FieldOperation, log.OpClear)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	t := s.ledger.Summary()
	writeJSON(w, http.StatusOK, summaryResponse{
		TotalIncome:   t.TotalIncome.InexactFloat64(),
		TotalSpending: t.TotalSpending.InexactFloat64(),
		Balance:       t.Balance.InexactFloat64(),
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, categoriesResponse{
		Categories:    s.ledger.Categories().Strings(),
		AssistEnabled: s.assist.Enabled(),
	})
}
