package models

import "time"

// ProjectionStatus indicates urgency level for budget depletion.
type ProjectionStatus string

const (
	ProjectionSafe     ProjectionStatus = "SAFE"
	ProjectionWarning  ProjectionStatus = "WARNING"
	ProjectionCritical ProjectionStatus = "CRITICAL"
	ProjectionUnknown  ProjectionStatus = "UNKNOWN"
)

// Projection forecasts when the daily budget runs out at the current request rate.
type Projection struct {
	GeneratedAt       time.Time
	DepleteAt         time.Time        // Zero when the rate is unknown
	Confidence        string           // "low", "medium", "high"
	VsHistorical      string           // Comparison text vs the archive average
	Status            ProjectionStatus // SAFE, WARNING, CRITICAL, UNKNOWN
	SessionRate       float64          // Requests per hour over the recent window
	HistoricalRate    float64          // Requests per enabled hour from the archive
	HoursLeft         float64          // Hours until depletion, +Inf without a rate
	HoursAvailable    float64          // Enabled time left today, in hours
	Remaining         int
	DataPoints        int  // Ring records inside the recent window
	WillDepleteBefore bool // True if the budget runs out before the day ends
}

// EffectiveRate returns the session rate, or the historical rate when no
// recent requests exist.
func (p *Projection) EffectiveRate() float64 {
	if p.SessionRate > 0 {
		return p.SessionRate
	}
	return p.HistoricalRate
}
