package simulator

import "strings"

// HistoricalImpact is a documented impact event. Energies are the accepted
// published estimates, not recomputed from the model.
type HistoricalImpact struct {
	Name              string   `json:"name"`
	Date              string   `json:"date"`
	Location          string   `json:"location"`
	Latitude          float64  `json:"latitude"`
	Longitude         float64  `json:"longitude"`
	AsteroidDiameterM float64  `json:"asteroid_diameter_m"`
	CraterDiameterKM  float64  `json:"crater_diameter_km"`
	EnergyMegatons    float64  `json:"energy_megatons"`
	Description       string   `json:"description"`
	Consequences      []string `json:"consequences"`
	Fatalities        *int     `json:"fatalities,omitempty"`
	DiscoveredYear    int      `json:"discovered_year"`
}

func intPtr(v int) *int { return &v }

var historicalImpacts = []HistoricalImpact{
	{
		Name:              "Chicxulub",
		Date:              "66 million years ago",
		Location:          "Yucatan Peninsula, Mexico",
		Latitude:          21.4,
		Longitude:         -89.5,
		AsteroidDiameterM: 10000,
		CraterDiameterKM:  180,
		EnergyMegatons:    1e11,
		Description:       "The impact that ended the dinosaurs, triggering an impact winter that lasted years.",
		Consequences: []string{
			"Extinction of 75% of all species",
			"Extinction of all non-avian dinosaurs",
			"Impact winter lasting over a decade",
			"Tsunamis over 100 meters tall",
			"Global wildfires",
			"Collapse of the food chain",
		},
		DiscoveredYear: 1978,
	},
	{
		Name:              "Vredefort",
		Date:              "2.023 billion years ago",
		Location:          "South Africa",
		Latitude:          -27.0,
		Longitude:         27.5,
		AsteroidDiameterM: 15000,
		CraterDiameterKM:  300,
		EnergyMegatons:    5e11,
		Description:       "The largest verified impact crater on Earth. The asteroid was bigger than the one that killed the dinosaurs.",
		Consequences: []string{
			"Largest known crater on Earth",
			"Possible mass extinction event",
			"Geological restructuring of the region",
			"Global seismic waves",
		},
		DiscoveredYear: 1920,
	},
	{
		Name:              "Sudbury",
		Date:              "1.849 billion years ago",
		Location:          "Ontario, Canada",
		Latitude:          46.6,
		Longitude:         -81.2,
		AsteroidDiameterM: 12000,
		CraterDiameterKM:  130,
		EnergyMegatons:    1e11,
		Description:       "One of the largest and best preserved craters, now a source of nickel, copper and platinum.",
		Consequences: []string{
			"Rich mineral deposit",
			"Second largest crater on Earth",
			"Crustal deformation spanning 200 km",
		},
		DiscoveredYear: 1891,
	},
	{
		Name:              "Tunguska",
		Date:              "June 30, 1908",
		Location:          "Siberia, Russia",
		Latitude:          60.9,
		Longitude:         101.9,
		AsteroidDiameterM: 50,
		CraterDiameterKM:  0,
		EnergyMegatons:    15,
		Description:       "The largest recorded explosion of a cosmic body, detonating 5-10 km above the ground.",
		Consequences: []string{
			"2,150 square kilometers of forest destroyed",
			"80 million trees flattened",
			"Windows shattered 400 km away",
			"Seismic waves detected worldwide",
			"Bright nights over Europe for weeks",
		},
		Fatalities:     intPtr(0),
		DiscoveredYear: 1908,
	},
	{
		Name:              "Chelyabinsk",
		Date:              "February 15, 2013",
		Location:          "Chelyabinsk, Russia",
		Latitude:          54.8,
		Longitude:         61.1,
		AsteroidDiameterM: 20,
		CraterDiameterKM:  0,
		EnergyMegatons:    0.5,
		Description:       "The most recent significant impact event, exploding 29.7 km up with the force of 30 Hiroshima bombs.",
		Consequences: []string{
			"1,500 people injured, mostly by broken glass",
			"7,200 buildings damaged",
			"Flash brighter than the Sun",
			"Shockwaves broke windows in six cities",
		},
		Fatalities:     intPtr(0),
		DiscoveredYear: 2013,
	},
	{
		Name:              "Barringer (Meteor Crater)",
		Date:              "50,000 years ago",
		Location:          "Arizona, United States",
		Latitude:          35.0,
		Longitude:         -111.0,
		AsteroidDiameterM: 50,
		CraterDiameterKM:  1.2,
		EnergyMegatons:    10,
		Description:       "The best preserved impact crater on Earth and the first recognized as extraterrestrial in origin.",
		Consequences: []string{
			"Crater 170 meters deep",
			"Destruction within a 10 km radius",
			"Winds of 1,000 km/h in the area",
			"Tourist and research site",
		},
		DiscoveredYear: 1891,
	},
	{
		Name:              "Popigai",
		Date:              "35.7 million years ago",
		Location:          "Siberia, Russia",
		Latitude:          71.7,
		Longitude:         111.0,
		AsteroidDiameterM: 5000,
		CraterDiameterKM:  100,
		EnergyMegatons:    1e10,
		Description:       "The fourth largest crater, holding the world's largest deposit of impact diamonds.",
		Consequences: []string{
			"Massive impact diamond deposit",
			"Possible contribution to the Eocene-Oligocene extinction",
			"Crater 100 km across",
		},
		DiscoveredYear: 1946,
	},
	{
		Name:              "Manicouagan",
		Date:              "214 million years ago",
		Location:          "Quebec, Canada",
		Latitude:          51.4,
		Longitude:         -68.7,
		AsteroidDiameterM: 5000,
		CraterDiameterKM:  85,
		EnergyMegatons:    5e9,
		Description:       "The 'Eye of Quebec', visible from space as a near-perfect ring of water.",
		Consequences: []string{
			"Ring-shaped lake 70 km across",
			"Possible link to the Triassic-Jurassic extinction",
			"Visible from space",
		},
		DiscoveredYear: 1966,
	},
}

// HistoricalImpacts returns the documented impact catalog.
func HistoricalImpacts() []HistoricalImpact {
	out := make([]HistoricalImpact, len(historicalImpacts))
	copy(out, historicalImpacts)
	return out
}

// HistoricalImpactByName looks up a catalog entry, case-insensitively.
func HistoricalImpactByName(name string) (HistoricalImpact, bool) {
	for _, impact := range historicalImpacts {
		if strings.EqualFold(impact.Name, name) {
			return impact, true
		}
	}
	return HistoricalImpact{}, false
}

// SimulateHistorical runs the model against a catalog entry. Velocity is
// estimated from size: large bodies tend to arrive faster.
func SimulateHistorical(name string) (Result, bool) {
	impact, ok := HistoricalImpactByName(name)
	if !ok {
		return Result{}, false
	}

	velocity := 17.0
	if impact.AsteroidDiameterM > 5000 {
		velocity = 20.0
	}

	return Simulate(impact.AsteroidDiameterM, velocity, 45, "rock"), true
}
