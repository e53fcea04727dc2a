package maintenance

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"neo-guardian/internal/auth"
	"neo-guardian/internal/observability"
	"neo-guardian/internal/security"
)

// CleanupHandler deactivates expired API keys and trims old audit rows. It is
// meant to be hit by a scheduler, guarded by a shared bearer secret.
type CleanupHandler struct {
	repo           *auth.Repository
	logger         *observability.Logger
	cronSecret     string
	auditRetention time.Duration
	batchSize      int
}

func NewCleanupHandler(
	repo *auth.Repository,
	logger *observability.Logger,
	cronSecret string,
	auditRetention time.Duration,
	batchSize int,
) *CleanupHandler {
	return &CleanupHandler{
		repo:           repo,
		logger:         logger,
		cronSecret:     strings.TrimSpace(cronSecret),
		auditRetention: auditRetention,
		batchSize:      batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") ||
		!security.ConstantTimeCompare(strings.TrimSpace(parts[1]), h.cronSecret) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	result, err := h.repo.CleanupStaleAuthData(r.Context(), h.auditRetention, h.batchSize)
	if err != nil {
		h.logger.Error("auth_cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	h.logger.Info("auth_cleanup_completed", map[string]any{
		"deactivated_api_keys": result.DeactivatedAPIKeys,
		"deleted_audit_logs":   result.DeletedAuditLogs,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"result": result,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
