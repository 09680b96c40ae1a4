package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pocketbalance/internal/assist"
	"pocketbalance/internal/core"
	"pocketbalance/internal/entry"
	"pocketbalance/internal/export"
	"pocketbalance/internal/log"
)

var errBadJSON = errors.New("malformed JSON body")

type errorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, problems ...string) {
	writeJSON(w, status, errorResponse{Error: msg, Problems: problems})
}

// decodeJSON reads one JSON value of at most limit bytes into v. Unknown
// fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errBadJSON)
	}
	return nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var verr *entry.ValidationError
	switch {
	case errors.Is(err, errBadJSON):
		return http.StatusBadRequest
	case errors.As(err, &verr),
		errors.Is(err, assist.ErrEmptyDescription),
		errors.Is(err, assist.ErrEmptyImage),
		errors.Is(err, assist.ErrInvalidDataURI),
		errors.Is(err, assist.ErrNotAnImage),
		errors.Is(err, entry.ErrDescriptionNeeded),
		errors.Is(err, entry.ErrInvalidSuggestion),
		errors.Is(err, core.ErrInvalidKind):
		return http.StatusUnprocessableEntity
	case errors.Is(err, export.ErrNothingToExport):
		return http.StatusConflict
	case errors.Is(err, assist.ErrSuggestionFailed),
		errors.Is(err, assist.ErrScanFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Internal errors are
// logged and hidden.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.FromContext(r.Context()).Failure(r.Context(), "Request failed", err, log.FieldPath, r.URL.Path)
		writeError(w, status, "internal error")
		return
	}

	var verr *entry.ValidationError
	if errors.As(err, &verr) {
		problems := make([]string, len(verr.Problems))
		for i, p := range verr.Problems {
			problems[i] = p.Error()
		}
		writeError(w, status, "invalid entry", problems...)
		return
	}
	// provider failures only expose the generic message
	switch {
	case status == http.StatusBadGateway && errors.Is(err, assist.ErrScanFailed):
		writeError(w, status, assist.ErrScanFailed.Error())
	case status == http.StatusBadGateway:
		writeError(w, status, assist.ErrSuggestionFailed.Error())
	default:
		writeError(w, status, err.Error())
	}
}

// amountText accepts the amount either as a JSON string, as typed in the
// form, or as a JSON number.
type amountText string

func (a *amountText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a string or number")
	}
	*a = amountText(n.String())
	return nil
}

// sendDocument writes a download with an attachment filename.
func sendDocument(w http.ResponseWriter, contentType, filename string, body io.Reader) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, strings.ReplaceAll(filename, `"`, "")))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}
