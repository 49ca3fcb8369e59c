package alerts

import (
	"fmt"

	"farm-alert-service/internal/models"
)

// rule maps a condition reading to one alert. Every rule whose applies
// function is satisfied produces exactly one alert, independently of the
// others, so a single reading can raise several.
type rule struct {
	applies func(models.Reading) bool
	build   func(models.Reading) models.AlertSpec
}

func area(r models.Reading) string {
	if r.Location != "" {
		return r.Location
	}
	return "whole farm"
}

// conditionRules is the threshold table evaluated per reading. Hail has no
// sensor signal and is only raised through the direct create API.
var conditionRules = []rule{
	{
		applies: func(r models.Reading) bool {
			return r.Temperature != nil && *r.Temperature < 0
		},
		build: func(r models.Reading) models.AlertSpec {
			sev := models.SeverityHigh
			if *r.Temperature < -5 {
				sev = models.SeverityCritical
			}
			return models.AlertSpec{
				Type:         models.AlertFrost,
				Severity:     sev,
				Title:        "Frost warning",
				Description:  fmt.Sprintf("Temperature dropped to %.1f°C", *r.Temperature),
				AffectedArea: area(r),
			}
		},
	},
	{
		applies: func(r models.Reading) bool {
			return r.Temperature != nil && *r.Temperature < -15
		},
		build: func(r models.Reading) models.AlertSpec {
			return models.AlertSpec{
				Type:         models.AlertExtremeCold,
				Severity:     models.SeverityCritical,
				Title:        "Extreme cold",
				Description:  fmt.Sprintf("Temperature dropped to %.1f°C", *r.Temperature),
				AffectedArea: area(r),
			}
		},
	},
	{
		applies: func(r models.Reading) bool {
			return r.Temperature != nil && *r.Temperature >= 35
		},
		build: func(r models.Reading) models.AlertSpec {
			sev := models.SeverityHigh
			if *r.Temperature >= 40 {
				sev = models.SeverityCritical
			}
			return models.AlertSpec{
				Type:         models.AlertExtremeHeat,
				Severity:     sev,
				Title:        "Extreme heat",
				Description:  fmt.Sprintf("Temperature reached %.1f°C", *r.Temperature),
				AffectedArea: area(r),
			}
		},
	},
	{
		applies: func(r models.Reading) bool {
			return r.Humidity != nil && *r.Humidity > 80 &&
				r.Temperature != nil && *r.Temperature > 15 && *r.Temperature < 25
		},
		build: func(r models.Reading) models.AlertSpec {
			return models.AlertSpec{
				Type:         models.AlertDiseaseRisk,
				Severity:     models.SeverityMedium,
				Title:        "Disease risk",
				Description:  fmt.Sprintf("Humidity %.0f%% at %.1f°C favors fungal growth", *r.Humidity, *r.Temperature),
				AffectedArea: area(r),
			}
		},
	},
	{
		applies: func(r models.Reading) bool {
			return r.WindSpeed != nil && *r.WindSpeed > 50
		},
		build: func(r models.Reading) models.AlertSpec {
			sev := models.SeverityHigh
			if *r.WindSpeed > 80 {
				sev = models.SeverityCritical
			}
			return models.AlertSpec{
				Type:         models.AlertHighWinds,
				Severity:     sev,
				Title:        "High winds",
				Description:  fmt.Sprintf("Wind speed reached %.0f km/h", *r.WindSpeed),
				AffectedArea: area(r),
			}
		},
	},
	{
		applies: func(r models.Reading) bool {
			return r.SoilMoisture != nil && *r.SoilMoisture < 15
		},
		build: func(r models.Reading) models.AlertSpec {
			sev := models.SeverityHigh
			if *r.SoilMoisture < 5 {
				sev = models.SeverityCritical
			}
			return models.AlertSpec{
				Type:         models.AlertDrought,
				Severity:     sev,
				Title:        "Drought conditions",
				Description:  fmt.Sprintf("Soil moisture down to %.0f%%", *r.SoilMoisture),
				AffectedArea: area(r),
			}
		},
	},
	{
		applies: func(r models.Reading) bool {
			return r.Precipitation != nil && *r.Precipitation > 100
		},
		build: func(r models.Reading) models.AlertSpec {
			sev := models.SeverityHigh
			if *r.Precipitation > 150 {
				sev = models.SeverityCritical
			}
			return models.AlertSpec{
				Type:         models.AlertFlood,
				Severity:     sev,
				Title:        "Flood risk",
				Description:  fmt.Sprintf("Precipitation reached %.0f mm", *r.Precipitation),
				AffectedArea: area(r),
			}
		},
	},
}

// recommendations holds per-type recommended actions attached to generated
// alerts and served through the recommendations endpoint.
var recommendations = map[models.AlertType][]string{
	models.AlertFrost: {
		"Cover sensitive crops with frost cloth",
		"Run irrigation before dawn to release ground heat",
		"Move potted plants under shelter",
	},
	models.AlertDrought: {
		"Switch to drip irrigation",
		"Mulch beds to retain soil moisture",
		"Prioritize watering of young plantings",
	},
	models.AlertFlood: {
		"Clear drainage ditches and culverts",
		"Move livestock to higher ground",
		"Disconnect electric fencing in flooded areas",
	},
	models.AlertHail: {
		"Deploy hail netting over orchards",
		"Shelter machinery and vehicles",
	},
	models.AlertExtremeHeat: {
		"Increase irrigation frequency",
		"Provide shade and extra water for livestock",
		"Avoid field work during midday hours",
	},
	models.AlertExtremeCold: {
		"Heat livestock shelters",
		"Insulate exposed water lines",
	},
	models.AlertHighWinds: {
		"Secure greenhouse panels and row covers",
		"Postpone spraying operations",
		"Check trellising and young tree stakes",
	},
	models.AlertDiseaseRisk: {
		"Scout fields for early infection signs",
		"Improve canopy ventilation",
		"Plan preventive fungicide application",
	},
}

// Recommendations returns the recommended actions for an alert type, or nil
// when none are known.
func Recommendations(t models.AlertType) []string {
	return recommendations[t]
}
