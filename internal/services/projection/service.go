// Package projection forecasts daily budget depletion from recent request rates.
package projection

import (
	"math"
	"time"

	"github.com/j-veylop/mediagate/internal/db"
	"github.com/j-veylop/mediagate/internal/logger"
	"github.com/j-veylop/mediagate/internal/models"
)

const (
	defaultWindow    = 3 * time.Hour
	historicalDays   = 30
	lowConfThreshold = 6
	medConfThreshold = 24
)

// Service computes projections. The archive is optional and only feeds the
// historical rate.
type Service struct {
	db     *db.DB
	now    func() time.Time
	window time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithWindow sets how far back the session rate looks.
func WithWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.window = d
		}
	}
}

// New creates a projection service. database may be nil.
func New(database *db.DB, opts ...Option) *Service {
	s := &Service{
		db:     database,
		now:    time.Now,
		window: defaultWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Project forecasts depletion of the daily budget for state and remaining.
func (s *Service) Project(state *models.QuotaState, remaining models.Remaining) *models.Projection {
	now := s.now()

	proj := &models.Projection{
		GeneratedAt:    now,
		Remaining:      remaining.Daily,
		Status:         models.ProjectionUnknown,
		HoursLeft:      math.Inf(1),
		HoursAvailable: hoursAvailable(state, now),
	}

	proj.DataPoints = s.recentRequests(state, now)
	proj.SessionRate = float64(proj.DataPoints) / s.window.Hours()
	proj.HistoricalRate = s.historicalRate(state)
	proj.Confidence = confidence(proj.DataPoints)
	proj.VsHistorical = formatHistoricalComparison(proj.SessionRate, proj.HistoricalRate)

	if remaining.Daily == 0 {
		proj.HoursLeft = 0
		proj.DepleteAt = now
		proj.WillDepleteBefore = true
		proj.Status = models.ProjectionCritical
		return proj
	}

	rate := proj.EffectiveRate()
	if rate <= 0 {
		return proj
	}

	proj.HoursLeft = float64(remaining.Daily) / rate
	proj.DepleteAt = now.Add(time.Duration(proj.HoursLeft * float64(time.Hour)))
	proj.WillDepleteBefore = float64(remaining.Daily) < rate*proj.HoursAvailable

	switch {
	case !proj.WillDepleteBefore:
		proj.Status = models.ProjectionSafe
	case proj.HoursLeft < 1:
		proj.Status = models.ProjectionCritical
	default:
		proj.Status = models.ProjectionWarning
	}
	return proj
}

// recentRequests counts ring records inside the session window.
func (s *Service) recentRequests(state *models.QuotaState, now time.Time) int {
	cutoff := now.Add(-s.window)
	n := 0
	for _, r := range state.RequestHistory {
		if r.Timestamp.After(cutoff) && !r.Timestamp.After(now) {
			n++
		}
	}
	return n
}

// historicalRate averages archived requests over the enabled hours of the
// days that saw any request.
func (s *Service) historicalRate(state *models.QuotaState) float64 {
	if s.db == nil {
		return 0
	}

	points, err := s.db.GetDailyRequests(historicalDays)
	if err != nil {
		logger.Warn("failed to read archive for projection", "error", err)
		return 0
	}

	enabled := 0
	for h := range models.HoursPerDay {
		if state.HourEnabled(h) {
			enabled++
		}
	}
	if len(points) == 0 || enabled == 0 {
		return 0
	}

	total := 0
	for _, p := range points {
		total += p.Requests
	}
	return float64(total) / float64(len(points)*enabled)
}

// hoursAvailable returns how much enabled time is left today, counting the
// rest of the current hour when it is enabled.
func hoursAvailable(state *models.QuotaState, now time.Time) float64 {
	hours := 0.0
	if state.HourEnabled(now.Hour()) {
		elapsed := time.Duration(now.Minute())*time.Minute + time.Duration(now.Second())*time.Second
		hours += 1 - elapsed.Hours()
	}
	for h := now.Hour() + 1; h < models.HoursPerDay; h++ {
		if state.HourEnabled(h) {
			hours++
		}
	}
	return hours
}

func confidence(dataPoints int) string {
	switch {
	case dataPoints < lowConfThreshold:
		return "low"
	case dataPoints < medConfThreshold:
		return "medium"
	default:
		return "high"
	}
}

func formatHistoricalComparison(current, allTimeAvg float64) string {
	if allTimeAvg <= 0 {
		return "Building history..."
	}
	diff := ((current - allTimeAvg) / allTimeAvg) * 100
	if math.Abs(diff) < 15 {
		return "Typical for you"
	} else if diff > 0 {
		return "Above your average"
	}
	return "Below your average"
}
