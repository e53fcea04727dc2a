package neo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedFixture = `{
	"element_count": 2,
	"near_earth_objects": {
		"2026-09-01": [
			{
				"id": "3542519",
				"name": "(2010 PK9)",
				"absolute_magnitude_h": 21.87,
				"is_potentially_hazardous_asteroid": true,
				"is_sentry_object": false,
				"nasa_jpl_url": "https://ssd.jpl.nasa.gov/tools/sbdb_lookup.html#/?sstr=3542519",
				"estimated_diameter": {
					"kilometers": {
						"estimated_diameter_min": 0.1058168859,
						"estimated_diameter_max": 0.2366137501
					}
				},
				"close_approach_data": [
					{
						"close_approach_date": "2026-09-01",
						"orbiting_body": "Earth",
						"relative_velocity": {"kilometers_per_second": "18.127"},
						"miss_distance": {
							"kilometers": "46695447.6",
							"lunar": "121.45",
							"astronomical": "0.3121"
						}
					}
				]
			},
			{
				"id": "54016476",
				"name": "(2020 GE)",
				"absolute_magnitude_h": 29.2,
				"is_potentially_hazardous_asteroid": false,
				"is_sentry_object": false,
				"estimated_diameter": {
					"kilometers": {
						"estimated_diameter_min": 0.0035,
						"estimated_diameter_max": 0.0078
					}
				},
				"close_approach_data": []
			}
		]
	}
}`

const objectFixture = `{
	"id": "3542519",
	"name": "(2010 PK9)",
	"absolute_magnitude_h": 21.87,
	"is_potentially_hazardous_asteroid": true,
	"is_sentry_object": false,
	"estimated_diameter": {
		"kilometers": {
			"estimated_diameter_min": 0.1058168859,
			"estimated_diameter_max": 0.2366137501
		}
	},
	"close_approach_data": [
		{
			"close_approach_date": "2026-09-01",
			"orbiting_body": "Earth",
			"relative_velocity": {"kilometers_per_second": "18.127"},
			"miss_distance": {"kilometers": "46695447.6", "lunar": "121.45", "astronomical": "0.3121"}
		}
	]
}`

func TestGetFeed(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(feedFixture))
	}))
	defer server.Close()

	client := NewClient("demo-key", server.URL, 5*time.Second)
	feed, err := client.GetFeed(context.Background(), "2026-09-01", "2026-09-02")
	require.NoError(t, err)

	assert.Equal(t, "/neo/rest/v1/feed", gotPath)
	assert.Contains(t, gotQuery, "start_date=2026-09-01")
	assert.Contains(t, gotQuery, "end_date=2026-09-02")
	assert.Contains(t, gotQuery, "api_key=demo-key")

	assert.Equal(t, 2, feed.ElementCount)
	objects := feed.Objects["2026-09-01"]
	require.Len(t, objects, 2)

	hazard := objects[0]
	assert.Equal(t, "3542519", hazard.ID)
	assert.Equal(t, "(2010 PK9)", hazard.Name)
	assert.True(t, hazard.IsPotentiallyHazardous)
	assert.InDelta(t, 0.1058168859, hazard.EstimatedDiameter.Kilometers.Min, 1e-9)
	require.Len(t, hazard.CloseApproaches, 1)
	assert.Equal(t, "18.127", hazard.CloseApproaches[0].RelativeVelocity.KMPerSecond)
	assert.Equal(t, "121.45", hazard.CloseApproaches[0].MissDistance.Lunar)
}

func TestGetObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/neo/rest/v1/neo/3542519", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(objectFixture))
	}))
	defer server.Close()

	client := NewClient("demo-key", server.URL, 5*time.Second)
	object, err := client.GetObject(context.Background(), "3542519")
	require.NoError(t, err)

	assert.Equal(t, "(2010 PK9)", object.Name)
	assert.True(t, object.IsPotentiallyHazardous)
	assert.InDelta(t, 21.87, object.AbsoluteMagnitude, 1e-9)
}

func TestGetObjectNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient("demo-key", server.URL, 5*time.Second)
	_, err := client.GetObject(context.Background(), "99999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient("demo-key", server.URL, 5*time.Second)
	_, err := client.GetFeed(context.Background(), "2026-09-01", "2026-09-01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestMalformedUpstreamBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := NewClient("demo-key", server.URL, 5*time.Second)
	_, err := client.GetFeed(context.Background(), "2026-09-01", "2026-09-01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode nasa response")
}
