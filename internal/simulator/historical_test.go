package simulator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoricalCatalog(t *testing.T) {
	impacts := HistoricalImpacts()
	require.Len(t, impacts, 8)

	chicxulub, ok := HistoricalImpactByName("chicxulub")
	require.True(t, ok)
	assert.Equal(t, "Chicxulub", chicxulub.Name)
	assert.Equal(t, 1e11, chicxulub.EnergyMegatons)
	assert.Equal(t, 180.0, chicxulub.CraterDiameterKM)

	tunguska, ok := HistoricalImpactByName("TUNGUSKA")
	require.True(t, ok)
	assert.Zero(t, tunguska.CraterDiameterKM)
	require.NotNil(t, tunguska.Fatalities)
	assert.Zero(t, *tunguska.Fatalities)

	_, ok = HistoricalImpactByName("atlantis")
	assert.False(t, ok)
}

func TestSimulateHistoricalVelocityBySize(t *testing.T) {
	small, ok := SimulateHistorical("Tunguska")
	require.True(t, ok)
	assert.Equal(t, 17.0, small.AsteroidVelocityKMS)
	assert.Equal(t, 50.0, small.AsteroidDiameterM)

	large, ok := SimulateHistorical("Chicxulub")
	require.True(t, ok)
	assert.Equal(t, 20.0, large.AsteroidVelocityKMS)

	_, ok = SimulateHistorical("nope")
	assert.False(t, ok)
}

func TestHistoricalHandlers(t *testing.T) {
	handler := NewHandler()

	rec := httptest.NewRecorder()
	handler.Historical(rec, httptest.NewRequest(http.MethodGet, "/simulator/historical", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var impacts []HistoricalImpact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &impacts))
	assert.Len(t, impacts, 8)

	req := httptest.NewRequest(http.MethodGet, "/simulator/historical/chelyabinsk", nil)
	req.SetPathValue("name", "chelyabinsk")
	rec = httptest.NewRecorder()
	handler.HistoricalByName(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Chelyabinsk")

	req = httptest.NewRequest(http.MethodGet, "/simulator/historical/atlantis", nil)
	req.SetPathValue("name", "atlantis")
	rec = httptest.NewRecorder()
	handler.HistoricalByName(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSimulateHistoricalHandler(t *testing.T) {
	handler := NewHandler()

	req := httptest.NewRequest(http.MethodGet, "/simulator/historical/barringer%20(meteor%20crater)/simulate", nil)
	req.SetPathValue("name", "Barringer (Meteor Crater)")
	rec := httptest.NewRecorder()
	handler.SimulateHistorical(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 50.0, result.AsteroidDiameterM)
	assert.NotEmpty(t, result.ImpactType)

	req = httptest.NewRequest(http.MethodGet, "/simulator/historical/atlantis/simulate", nil)
	req.SetPathValue("name", "atlantis")
	rec = httptest.NewRecorder()
	handler.SimulateHistorical(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompareHandler(t *testing.T) {
	handler := NewHandler()

	rec := httptest.NewRecorder()
	handler.Compare(rec, httptest.NewRequest(http.MethodGet, "/simulator/compare?diameter1=100&diameter2=200", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp compareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 100.0, resp.Asteroid1.DiameterM)
	assert.Equal(t, 200.0, resp.Asteroid2.DiameterM)
	// Energy scales with the cube of the diameter.
	assert.InDelta(t, 8.0, resp.Comparison.EnergyRatio, 0.01)
	assert.Greater(t, resp.Comparison.CraterRatio, 1.0)
}

func TestCompareHandlerValidation(t *testing.T) {
	handler := NewHandler()

	targets := []string{
		"/simulator/compare",
		"/simulator/compare?diameter1=100",
		"/simulator/compare?diameter1=abc&diameter2=200",
		"/simulator/compare?diameter1=0&diameter2=200",
		"/simulator/compare?diameter1=100&diameter2=50001",
	}
	for _, target := range targets {
		rec := httptest.NewRecorder()
		handler.Compare(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}
