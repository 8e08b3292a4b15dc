package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/phucmetlamroi/agency-manager/internal/domain/runguard"
	"github.com/phucmetlamroi/agency-manager/pkg/logger"
)

const bearerPrefix = "Bearer "

// ScoringHandler handles run trigger requests.
type ScoringHandler struct {
	trigger RunTrigger
	secret  []byte
	logger  logger.Logger
}

// NewScoringHandler creates a trigger handler. An empty secret disables the
// credential check.
func NewScoringHandler(trigger RunTrigger, secret string, l logger.Logger) *ScoringHandler {
	h := &ScoringHandler{trigger: trigger, logger: l}
	if secret != "" {
		h.secret = []byte(secret)
	}
	return h
}

// HandleTrigger handles POST /api/scoring requests.
func (h *ScoringHandler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	const op = "api.trigger_scoring"
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethodNotAllowed))
		return
	}
	if err := h.authorize(r); err != nil {
		h.logger.Warn(r.Context(), "scoring trigger rejected", logger.String("remote", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, "unauthorized", WrapKind(op, ErrUnauthorized, err))
		return
	}

	report, err := h.trigger.Trigger(r.Context())
	switch {
	case errors.Is(err, runguard.ErrRunInProgress):
		writeError(w, http.StatusConflict, "run_in_progress", WrapKind(op, ErrRunFailed, err))
	case err != nil:
		kerr := WrapKind(op, ErrRunFailed, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:    "run_failed",
			Message: kerr.Error(),
			RunID:   report.RunID,
		})
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func (h *ScoringHandler) authorize(r *http.Request) error {
	if len(h.secret) == 0 {
		return nil
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return errors.New("missing bearer credential")
	}
	got := []byte(strings.TrimPrefix(header, bearerPrefix))
	if subtle.ConstantTimeCompare(got, h.secret) != 1 {
		return errors.New("credential mismatch")
	}
	return nil
}
