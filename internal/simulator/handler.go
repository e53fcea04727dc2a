package simulator

import (
	"encoding/json"
	"net/http"
	"strconv"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

type simulateRequest struct {
	DiameterM    float64 `json:"diameter_m"`
	VelocityKMS  float64 `json:"velocity_kms"`
	AngleDegrees float64 `json:"angle_degrees"`
	DensityType  string  `json:"density_type"`
}

func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var body simulateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if body.DiameterM <= 0 || body.DiameterM > 100000 {
		writeError(w, http.StatusBadRequest, "diameter_m must be between 0 and 100000")
		return
	}
	if body.VelocityKMS <= 0 || body.VelocityKMS > 100 {
		writeError(w, http.StatusBadRequest, "velocity_kms must be between 0 and 100")
		return
	}
	if body.AngleDegrees <= 0 || body.AngleDegrees > 90 {
		body.AngleDegrees = 45
	}

	result := Simulate(body.DiameterM, body.VelocityKMS, body.AngleDegrees, body.DensityType)
	writeJSON(w, http.StatusOK, result)
}

// Historical lists the documented impact catalog.
func (h *Handler) Historical(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HistoricalImpacts())
}

func (h *Handler) HistoricalByName(w http.ResponseWriter, r *http.Request) {
	impact, ok := HistoricalImpactByName(r.PathValue("name"))
	if !ok {
		writeError(w, http.StatusNotFound, "historical impact not found")
		return
	}
	writeJSON(w, http.StatusOK, impact)
}

// SimulateHistorical runs the model against a catalog entry so the computed
// effects can be held up against the documented consequences.
func (h *Handler) SimulateHistorical(w http.ResponseWriter, r *http.Request) {
	result, ok := SimulateHistorical(r.PathValue("name"))
	if !ok {
		writeError(w, http.StatusNotFound, "historical impact not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type compareScenario struct {
	DiameterM      float64 `json:"diameter_m"`
	EnergyMegatons float64 `json:"energy_megatons"`
	CraterKM       float64 `json:"crater_km"`
	Type           string  `json:"type"`
}

type compareResponse struct {
	Asteroid1  compareScenario `json:"asteroid_1"`
	Asteroid2  compareScenario `json:"asteroid_2"`
	Comparison struct {
		EnergyRatio float64 `json:"energy_ratio"`
		CraterRatio float64 `json:"crater_ratio"`
	} `json:"comparison"`
}

// Compare runs two scenarios with default velocity and angle and reports
// their relative scale.
func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	diameter1, err1 := strconv.ParseFloat(r.URL.Query().Get("diameter1"), 64)
	diameter2, err2 := strconv.ParseFloat(r.URL.Query().Get("diameter2"), 64)
	if err1 != nil || err2 != nil ||
		diameter1 < 1 || diameter1 > 50000 || diameter2 < 1 || diameter2 > 50000 {
		writeError(w, http.StatusBadRequest, "diameter1 and diameter2 must be between 1 and 50000")
		return
	}

	sim1 := Simulate(diameter1, 17, 45, "rock")
	sim2 := Simulate(diameter2, 17, 45, "rock")

	resp := compareResponse{
		Asteroid1: compareScenario{
			DiameterM:      diameter1,
			EnergyMegatons: sim1.EnergyMegatons,
			CraterKM:       sim1.Effects.CraterDiameterKM,
			Type:           sim1.ImpactType,
		},
		Asteroid2: compareScenario{
			DiameterM:      diameter2,
			EnergyMegatons: sim2.EnergyMegatons,
			CraterKM:       sim2.Effects.CraterDiameterKM,
			Type:           sim2.ImpactType,
		},
	}
	if sim1.EnergyMegatons > 0 {
		resp.Comparison.EnergyRatio = round(sim2.EnergyMegatons/sim1.EnergyMegatons, 2)
	}
	if sim1.Effects.CraterDiameterKM > 0 {
		resp.Comparison.CraterRatio = round(sim2.Effects.CraterDiameterKM/sim1.Effects.CraterDiameterKM, 2)
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
