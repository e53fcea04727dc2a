package simulator

import (
	"fmt"
	"math"
)

// Impact type by released energy and body size.
const (
	TypeAirburst     = "airburst"
	TypeCraterSmall  = "crater_small"
	TypeCraterMedium = "crater_medium"
	TypeCraterLarge  = "crater_large"
	TypeExtinction   = "extinction"
)

// joules per megaton of TNT
const megatonJoules = 4.184e15

// Typical asteroid densities in kg/m3.
var densities = map[string]float64{
	"ice":         1000,
	"porous_rock": 1500,
	"rock":        2500,
	"dense_rock":  3000,
	"iron":        7800,
}

type Effects struct {
	CraterDiameterKM         float64  `json:"crater_diameter_km"`
	FireballRadiusKM         float64  `json:"fireball_radius_km"`
	ThermalRadiationRadiusKM float64  `json:"thermal_radiation_radius_km"`
	ShockwaveRadiusKM        float64  `json:"shockwave_radius_km"`
	EarthquakeMagnitude      float64  `json:"earthquake_magnitude"`
	TsunamiHeightM           *float64 `json:"tsunami_height_m,omitempty"`
	DustCloudDurationYears   *float64 `json:"dust_cloud_duration_years,omitempty"`
	GlobalTemperatureChangeC *float64 `json:"global_temperature_change_c,omitempty"`
}

type Result struct {
	AsteroidDiameterM   float64 `json:"asteroid_diameter_m"`
	AsteroidVelocityKMS float64 `json:"asteroid_velocity_kms"`
	ImpactAngleDegrees  float64 `json:"impact_angle_degrees"`
	AsteroidDensityKGM3 float64 `json:"asteroid_density_kgm3"`
	EnergyMegatons      float64 `json:"impact_energy_megatons"`
	EnergyJoules        float64 `json:"impact_energy_joules"`
	ImpactType          string  `json:"impact_type"`
	Effects             Effects `json:"effects"`
	Comparison          string  `json:"comparison"`
}

// Simulate evaluates the closed-form impact model for a spherical body of
// the given diameter, velocity, entry angle and composition.
func Simulate(diameterM, velocityKMS, angleDegrees float64, densityType string) Result {
	density, ok := densities[densityType]
	if !ok {
		density = densities["rock"]
	}

	radius := diameterM / 2
	volume := (4.0 / 3.0) * math.Pi * math.Pow(radius, 3)
	mass := volume * density
	velocityMS := velocityKMS * 1000

	energyJoules := 0.5 * mass * velocityMS * velocityMS
	energyMegatons := energyJoules / megatonJoules

	// Shallower entry angles deposit less energy at the surface.
	angleFactor := math.Sin(angleDegrees * math.Pi / 180)
	energyJoules *= angleFactor
	energyMegatons *= angleFactor

	impactType := classify(energyMegatons, diameterM)

	return Result{
		AsteroidDiameterM:   diameterM,
		AsteroidVelocityKMS: velocityKMS,
		ImpactAngleDegrees:  angleDegrees,
		AsteroidDensityKGM3: density,
		EnergyMegatons:      round(energyMegatons, 4),
		EnergyJoules:        energyJoules,
		ImpactType:          impactType,
		Effects:             effects(energyMegatons, energyJoules, impactType == TypeAirburst),
		Comparison:          comparison(energyMegatons),
	}
}

// Bodies under ~25 m break up in the atmosphere.
func classify(energyMegatons, diameterM float64) string {
	switch {
	case diameterM < 25:
		return TypeAirburst
	case energyMegatons < 1e3:
		return TypeCraterSmall
	case energyMegatons < 1e6:
		return TypeCraterMedium
	case energyMegatons < 1e11:
		return TypeCraterLarge
	default:
		return TypeExtinction
	}
}

// Holsapple-style crater scaling against a rock target.
func craterDiameterKM(energyJoules float64) float64 {
	const k = 0.074
	const targetDensity = 2500.0
	return k * math.Pow(energyJoules, 0.294) * math.Pow(targetDensity, -0.44) / 1000
}

func effects(energyMegatons, energyJoules float64, airburst bool) Effects {
	var craterKM float64
	if !airburst {
		craterKM = craterDiameterKM(energyJoules)
	}

	out := Effects{
		CraterDiameterKM:         round(craterKM, 2),
		FireballRadiusKM:         round(0.002*math.Pow(energyMegatons, 0.4), 2),
		ThermalRadiationRadiusKM: round(0.02*math.Pow(energyMegatons, 0.41), 2),
		ShockwaveRadiusKM:        round(0.28*math.Pow(energyMegatons, 0.33), 2),
	}

	if energyMegatons > 0 {
		magnitude := 0.67*math.Log10(energyMegatons*megatonJoules) - 5.87
		out.EarthquakeMagnitude = round(math.Min(math.Max(magnitude, 0), 12), 1)
	}
	if energyMegatons > 100 && craterKM > 0 {
		height := round(10*math.Pow(energyMegatons/1000, 0.25), 1)
		out.TsunamiHeightM = &height
	}

	// Masses past this threshold loft enough ejecta to perturb the climate.
	if energyMegatons > 1e10 {
		dust := round(math.Log10(energyMegatons)-8, 1)
		cooling := round(-5*math.Pow(energyMegatons/1e11, 0.3), 1)
		out.DustCloudDurationYears = &dust
		out.GlobalTemperatureChangeC = &cooling
	}

	return out
}

func comparison(energyMegatons float64) string {
	const (
		hiroshima = 0.015
		tsarBomba = 50.0
		tunguska  = 15.0
		chicxulub = 1e11
	)

	switch {
	case energyMegatons < 0.001:
		return fmt.Sprintf("equivalent to %.1f kilotons of TNT", energyMegatons*1000)
	case energyMegatons < 1:
		return fmt.Sprintf("equivalent to %.0f Hiroshima bombs", energyMegatons/hiroshima)
	case energyMegatons < 100:
		return fmt.Sprintf("equivalent to %.0f Hiroshima bombs or %.1f Tsar Bombas", energyMegatons/hiroshima, energyMegatons/tsarBomba)
	case energyMegatons < 1000:
		return fmt.Sprintf("roughly %.0f times the Tunguska event", energyMegatons/tunguska)
	case energyMegatons < 1e9:
		return fmt.Sprintf("%.2f million megatons, a regional extinction event", energyMegatons/1e6)
	default:
		return fmt.Sprintf("roughly %.1f%% of the Chicxulub impact energy, a global extinction event", 100*energyMegatons/chicxulub)
	}
}

func round(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}
