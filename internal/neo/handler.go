package neo

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

var (
	dateRegex  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	neoIDRegex = regexp.MustCompile(`^[0-9]{1,20}$`)
)

type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// Feed proxies the NASA close-approach feed. Dates default to today when
// omitted; the range is capped at 7 days upstream.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	today := time.Now().UTC().Format("2006-01-02")
	startDate := queryOrDefault(r, "start_date", today)
	endDate := queryOrDefault(r, "end_date", startDate)

	if !dateRegex.MatchString(startDate) || !dateRegex.MatchString(endDate) {
		writeError(w, http.StatusBadRequest, "dates must be formatted YYYY-MM-DD")
		return
	}

	feed, err := h.client.GetFeed(r.Context(), startDate, endDate)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusBadGateway, "failed to fetch neo feed")
		return
	}

	writeJSON(w, http.StatusOK, feed)
}

func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	neoID := r.PathValue("id")
	if !neoIDRegex.MatchString(neoID) {
		writeError(w, http.StatusBadRequest, "invalid neo id")
		return
	}

	object, err := h.client.GetObject(r.Context(), neoID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "neo object not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusBadGateway, "failed to fetch neo object")
		return
	}

	writeJSON(w, http.StatusOK, object)
}

func queryOrDefault(r *http.Request, name, fallback string) string {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
