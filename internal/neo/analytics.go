package neo

import (
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
)

// kilometers per lunar distance
const lunarDistanceKM = 384400.0

type todayStats struct {
	Date                 string   `json:"date"`
	TotalCount           int      `json:"total_count"`
	HazardousCount       int      `json:"hazardous_count"`
	ClosestNEO           string   `json:"closest_neo,omitempty"`
	ClosestDistanceKM    *float64 `json:"closest_distance_km,omitempty"`
	ClosestDistanceLunar *float64 `json:"closest_distance_lunar,omitempty"`
	ThreatLevel          string   `json:"threat_level"`
}

// Today summarizes the current day's close approaches with a coarse threat
// rating for dashboards.
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	today := time.Now().UTC().Format("2006-01-02")

	feed, err := h.client.GetFeed(r.Context(), today, today)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusBadGateway, "failed to fetch neo feed")
		return
	}

	objects := flattenFeed(feed)
	stats := todayStats{
		Date:       today,
		TotalCount: len(objects),
	}

	closestKM := math.Inf(1)
	for _, object := range objects {
		if object.IsPotentiallyHazardous {
			stats.HazardousCount++
		}
		if km, ok := minMissDistanceKM(object); ok && km < closestKM {
			closestKM = km
			stats.ClosestNEO = object.Name
		}
	}
	if !math.IsInf(closestKM, 1) {
		lunar := closestKM / lunarDistanceKM
		stats.ClosestDistanceKM = &closestKM
		stats.ClosestDistanceLunar = &lunar
	}
	stats.ThreatLevel = threatLevel(stats.HazardousCount, stats.ClosestDistanceKM)

	writeJSON(w, http.StatusOK, stats)
}

// Hazardous returns only the potentially hazardous objects over the coming
// days. Useful for alerting.
func (h *Handler) Hazardous(w http.ResponseWriter, r *http.Request) {
	days, ok := queryInt(r, "days", 7, 1, 7)
	if !ok {
		writeError(w, http.StatusBadRequest, "days must be between 1 and 7")
		return
	}

	objects, failed := h.rangeObjects(w, r, days)
	if failed {
		return
	}

	hazardous := make([]Object, 0)
	for _, object := range objects {
		if object.IsPotentiallyHazardous {
			hazardous = append(hazardous, object)
		}
	}

	writeJSON(w, http.StatusOK, hazardous)
}

// Closest returns upcoming objects ordered by minimum miss distance.
func (h *Handler) Closest(w http.ResponseWriter, r *http.Request) {
	days, okDays := queryInt(r, "days", 7, 1, 7)
	limit, okLimit := queryInt(r, "limit", 10, 1, 50)
	if !okDays || !okLimit {
		writeError(w, http.StatusBadRequest, "days must be 1-7 and limit 1-50")
		return
	}

	objects, failed := h.rangeObjects(w, r, days)
	if failed {
		return
	}

	sort.SliceStable(objects, func(i, j int) bool {
		return sortDistance(objects[i]) < sortDistance(objects[j])
	})
	if len(objects) > limit {
		objects = objects[:limit]
	}

	writeJSON(w, http.StatusOK, objects)
}

// Largest returns upcoming objects ordered by estimated maximum diameter.
func (h *Handler) Largest(w http.ResponseWriter, r *http.Request) {
	days, okDays := queryInt(r, "days", 7, 1, 7)
	limit, okLimit := queryInt(r, "limit", 10, 1, 50)
	if !okDays || !okLimit {
		writeError(w, http.StatusBadRequest, "days must be 1-7 and limit 1-50")
		return
	}

	objects, failed := h.rangeObjects(w, r, days)
	if failed {
		return
	}

	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].EstimatedDiameter.Kilometers.Max > objects[j].EstimatedDiameter.Kilometers.Max
	})
	if len(objects) > limit {
		objects = objects[:limit]
	}

	writeJSON(w, http.StatusOK, objects)
}

// rangeObjects fetches and flattens the feed for today plus days. A true
// second return means the error response was already written.
func (h *Handler) rangeObjects(w http.ResponseWriter, r *http.Request, days int) ([]Object, bool) {
	now := time.Now().UTC()
	startDate := now.Format("2006-01-02")
	endDate := now.AddDate(0, 0, days).Format("2006-01-02")

	feed, err := h.client.GetFeed(r.Context(), startDate, endDate)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusBadGateway, "failed to fetch neo feed")
		return nil, true
	}

	return flattenFeed(feed), false
}

func flattenFeed(feed Feed) []Object {
	dates := make([]string, 0, len(feed.Objects))
	for date := range feed.Objects {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	out := make([]Object, 0, feed.ElementCount)
	for _, date := range dates {
		out = append(out, feed.Objects[date]...)
	}
	return out
}

// minMissDistanceKM returns the smallest parseable miss distance across an
// object's close approaches.
func minMissDistanceKM(o Object) (float64, bool) {
	best := math.Inf(1)
	found := false
	for _, approach := range o.CloseApproaches {
		km, err := strconv.ParseFloat(approach.MissDistance.Kilometers, 64)
		if err != nil {
			continue
		}
		if km < best {
			best = km
			found = true
		}
	}
	return best, found
}

func sortDistance(o Object) float64 {
	km, ok := minMissDistanceKM(o)
	if !ok {
		return math.Inf(1)
	}
	return km
}

// threatLevel rates the day: high under a million kilometers or with more
// than two hazardous objects, medium under five million or with any.
func threatLevel(hazardousCount int, closestKM *float64) string {
	if closestKM == nil {
		return "low"
	}
	switch {
	case *closestKM < 1_000_000 || hazardousCount > 2:
		return "high"
	case *closestKM < 5_000_000 || hazardousCount >= 1:
		return "medium"
	default:
		return "low"
	}
}

func queryInt(r *http.Request, name string, fallback, min, max int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < min || value > max {
		return 0, false
	}
	return value, true
}
