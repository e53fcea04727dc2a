package apikey

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"neo-guardian/internal/audit"
	"neo-guardian/internal/auth"
	"neo-guardian/internal/security"
)

const maxJSONBodyBytes = 1 << 20

var allowedScopes = []string{"read", "write", "alerts", "admin"}

// Handler manages API keys for the authenticated principal. The raw secret
// is returned exactly once, at creation or regeneration.
type Handler struct {
	store auth.Store
	audit audit.Recorder
	now   func() time.Time
}

func NewHandler(store auth.Store, recorder audit.Recorder) *Handler {
	return &Handler{
		store: store,
		audit: recorder,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type createRequest struct {
	Name          string   `json:"name"`
	Scopes        []string `json:"scopes"`
	ExpiresInDays int      `json:"expires_in_days,omitempty"`
}

type createdResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	APIKey    string   `json:"api_key"`
	KeyPrefix string   `json:"key_prefix"`
	Scopes    []string `json:"scopes"`
	ExpiresAt string   `json:"expires_at,omitempty"`
	Warning   string   `json:"warning"`
}

type keyResponse struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	KeyPrefix  string   `json:"key_prefix"`
	Scopes     []string `json:"scopes"`
	ExpiresAt  string   `json:"expires_at,omitempty"`
	LastUsedAt string   `json:"last_used_at,omitempty"`
	CreatedAt  string   `json:"created_at"`
	IsActive   bool     `json:"is_active"`
}

const rawKeyWarning = "Store this key now. It cannot be shown again."

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var body createRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.Name = security.SanitizeInput(strings.TrimSpace(body.Name))
	if body.Name == "" || len(body.Name) > 100 {
		writeError(w, http.StatusBadRequest, "name must be 1-100 characters")
		return
	}
	if len(body.Scopes) == 0 {
		body.Scopes = []string{"read"}
	}
	if body.ExpiresInDays < 0 || body.ExpiresInDays > 365 {
		writeError(w, http.StatusBadRequest, "expires_in_days must be 0 (no expiry) or between 1 and 365")
		return
	}

	for _, scope := range body.Scopes {
		if !isAllowedScope(scope) {
			writeError(w, http.StatusBadRequest, "invalid scope: "+scope)
			return
		}
		if scope == "admin" && !user.HasRole("admin") {
			writeError(w, http.StatusForbidden, "admin role required for admin-scoped keys")
			return
		}
	}

	rawKey, err := security.GenerateAPIKey()
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create api key")
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create api key")
		return
	}

	var expiresAt *time.Time
	if body.ExpiresInDays > 0 {
		value := h.now().Add(time.Duration(body.ExpiresInDays) * 24 * time.Hour)
		expiresAt = &value
	}

	key := auth.APIKey{
		ID:        id.String(),
		UserID:    user.ID,
		Name:      body.Name,
		KeyHash:   security.HashToken(rawKey),
		KeyPrefix: rawKey[:10],
		Scopes:    body.Scopes,
		ExpiresAt: expiresAt,
		IsActive:  true,
		CreatedAt: h.now(),
	}

	if err := h.store.CreateAPIKey(r.Context(), key); err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create api key")
		return
	}

	h.audit.Record(r.Context(), audit.Event{
		Action:       "api_key_created",
		Status:       audit.StatusSuccess,
		UserID:       user.ID,
		ResourceType: "api_key",
		ResourceID:   key.ID,
		Detail:       "name=" + key.Name + " scopes=" + strings.Join(key.Scopes, ","),
	})

	resp := createdResponse{
		ID:        key.ID,
		Name:      key.Name,
		APIKey:    rawKey,
		KeyPrefix: key.KeyPrefix,
		Scopes:    key.Scopes,
		Warning:   rawKeyWarning,
	}
	if expiresAt != nil {
		resp.ExpiresAt = expiresAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	keys, err := h.store.ListAPIKeys(r.Context(), user.ID)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list api keys")
		return
	}

	now := h.now()
	out := make([]keyResponse, 0, len(keys))
	for _, key := range keys {
		item := keyResponse{
			ID:        key.ID,
			Name:      key.Name,
			KeyPrefix: key.KeyPrefix,
			Scopes:    key.Scopes,
			CreatedAt: key.CreatedAt.Format(time.RFC3339),
			IsActive:  key.IsActive && !key.IsExpired(now),
		}
		if key.ExpiresAt != nil {
			item.ExpiresAt = key.ExpiresAt.Format(time.RFC3339)
		}
		if key.LastUsedAt != nil {
			item.LastUsedAt = key.LastUsedAt.Format(time.RFC3339)
		}
		out = append(out, item)
	}

	writeJSON(w, http.StatusOK, out)
}

// Revoke deactivates a key in place; the record stays for auditing.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	keyID := r.PathValue("id")
	if err := h.store.DeactivateAPIKey(r.Context(), keyID, user.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "api key not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to revoke api key")
		return
	}

	h.audit.Record(r.Context(), audit.Event{
		Action:       "api_key_revoked",
		Status:       audit.StatusSuccess,
		UserID:       user.ID,
		ResourceType: "api_key",
		ResourceID:   keyID,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "api key revoked"})
}

// Regenerate replaces the secret of an existing key, invalidating the old
// raw value immediately.
func (h *Handler) Regenerate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	keyID := r.PathValue("id")
	key, err := h.store.GetAPIKeyByID(r.Context(), keyID, user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "api key not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to regenerate api key")
		return
	}

	rawKey, err := security.GenerateAPIKey()
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to regenerate api key")
		return
	}

	newPrefix := rawKey[:10]
	if err := h.store.ReplaceAPIKeySecret(r.Context(), keyID, user.ID, security.HashToken(rawKey), newPrefix); err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to regenerate api key")
		return
	}

	h.audit.Record(r.Context(), audit.Event{
		Action:       "api_key_regenerated",
		Status:       audit.StatusSuccess,
		UserID:       user.ID,
		ResourceType: "api_key",
		ResourceID:   keyID,
	})

	resp := createdResponse{
		ID:        key.ID,
		Name:      key.Name,
		APIKey:    rawKey,
		KeyPrefix: newPrefix,
		Scopes:    key.Scopes,
		Warning:   rawKeyWarning,
	}
	if key.ExpiresAt != nil {
		resp.ExpiresAt = key.ExpiresAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func isAllowedScope(scope string) bool {
	for _, allowed := range allowedScopes {
		if scope == allowed {
			return true
		}
	}
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
