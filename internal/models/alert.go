package models

import "time"

// AlertType identifies the condition class an alert was raised for.
// The set is open-ended; these are the types the rule table produces today.
type AlertType string

const (
	AlertFrost       AlertType = "frost"
	AlertDrought     AlertType = "drought"
	AlertFlood       AlertType = "flood"
	AlertHail        AlertType = "hail"
	AlertExtremeHeat AlertType = "extreme_heat"
	AlertExtremeCold AlertType = "extreme_cold"
	AlertHighWinds   AlertType = "high_winds"
	AlertDiseaseRisk AlertType = "disease_risk"
)

// Severity is the ordered alert severity scale.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the position of s in the fixed total order
// low(0) < medium(1) < high(2) < critical(3). Unknown severities rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// AlertStatus is the alert lifecycle state. Transitions are monotonic:
// active -> resolved or active -> expired, never backward.
type AlertStatus string

const (
	StatusActive   AlertStatus = "active"
	StatusResolved AlertStatus = "resolved"
	StatusExpired  AlertStatus = "expired"
)

// Alert is an audit-preserving record of one raised condition.
// Alerts are never deleted, only status-transitioned.
type Alert struct {
	ID                 string      `json:"id"`
	FarmID             string      `json:"farm_id"`
	Type               AlertType   `json:"type"`
	Severity           Severity    `json:"severity"`
	Title              string      `json:"title"`
	Description        string      `json:"description"`
	AffectedArea       string      `json:"affected_area,omitempty"`
	StartTime          time.Time   `json:"start_time"`
	EndTime            *time.Time  `json:"end_time,omitempty"`
	RecommendedActions []string    `json:"recommended_actions,omitempty"`
	Status             AlertStatus `json:"status"`
	CreatedAt          time.Time   `json:"created_at"`
	ResolvedAt         *time.Time  `json:"resolved_at,omitempty"`
}

// AlertSpec is the caller-supplied portion of a new alert. ID, status and
// timestamps are assigned by the engine.
type AlertSpec struct {
	Type               AlertType  `json:"type" binding:"required"`
	Severity           Severity   `json:"severity" binding:"required"`
	Title              string     `json:"title" binding:"required"`
	Description        string     `json:"description"`
	AffectedArea       string     `json:"affected_area"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            *time.Time `json:"end_time"`
	RecommendedActions []string   `json:"recommended_actions"`
}

// AlertFilter narrows alert queries. Zero values match everything.
type AlertFilter struct {
	Type     AlertType   `form:"type"`
	Severity Severity    `form:"severity"`
	Status   AlertStatus `form:"status"`
}

// AlertStats summarizes one farm's alerts for dashboard tiles.
type AlertStats struct {
	Total      int               `json:"total"`
	Active     int               `json:"active"`
	ByType     map[AlertType]int `json:"by_type"`
	BySeverity map[Severity]int  `json:"by_severity"`
}

// Reading is one condition sample for a farm, as produced by the field
// sensors and consumed from the readings topic.
type Reading struct {
	FarmID        string     `json:"farm_id"`
	Location      string     `json:"location"`
	Temperature   *float64   `json:"temperature,omitempty"`
	Humidity      *float64   `json:"humidity,omitempty"`
	WindSpeed     *float64   `json:"wind_speed,omitempty"`
	Precipitation *float64   `json:"precipitation,omitempty"`
	SoilMoisture  *float64   `json:"soil_moisture,omitempty"`
	RecordedAt    *time.Time `json:"recorded_at,omitempty"`
}
