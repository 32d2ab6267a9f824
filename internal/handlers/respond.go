package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"expenseflow/internal/apperr"
)

const (
	maxBodyBytes = 1 << 20

	msgInvalidFields = "Missing or invalid fields"
	msgInternal      = "Internal server error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError logs err in full and answers with its kind's status. Production
// responses carry generic messages for invalid input and internal failures.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.Status(err)
	logger := LoggerFromContext(r.Context())

	msg := apperr.Message(err)
	switch kind {
	case apperr.KindInternal:
		logger.Error("request failed", "error", err, "kind", kind.String())
		msg = msgInternal
	case apperr.KindInvalidInput:
		logger.Debug("request rejected", "error", err, "kind", kind.String())
		if h.opts.Production {
			msg = msgInvalidFields
		}
	default:
		logger.Debug("request rejected", "error", err, "kind", kind.String())
	}

	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &apperr.Error{Kind: apperr.KindInvalidInput, Msg: "Invalid JSON body", Err: err}
	}
	return nil
}

// flexAmount accepts a JSON number or a numeric string. A null or absent
// value leaves it unset; anything else non-numeric marks it invalid.
type flexAmount struct {
	set     bool
	invalid bool
	value   float64
}

func (a *flexAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	a.set = true

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			a.invalid = true
			return nil
		}
		a.value = v
		return nil
	}

	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		a.invalid = true
		return nil
	}
	a.value = v
	return nil
}

// pointer returns the amount, or nil when unset. An invalid amount is an error.
func (a flexAmount) pointer() (*float64, error) {
	if a.invalid {
		return nil, apperr.InvalidInput("Amount must be a number")
	}
	if !a.set {
		return nil, nil
	}
	v := a.value
	return &v, nil
}
