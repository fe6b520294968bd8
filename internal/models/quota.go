// Package models defines data structures and domain types.
package models

import (
	"slices"
	"time"
)

const (
	// QuotaStateVersion is the current version of the persisted quota document.
	QuotaStateVersion = 1

	// HistoryCapacity is the number of request records kept in QuotaState.
	HistoryCapacity = 100

	// HoursPerDay is the size of the hour schedule.
	HoursPerDay = 24

	// MonthKeyLayout formats the currentMonth key.
	MonthKeyLayout = "2006-01"

	// DateKeyLayout formats the lastResetDate key.
	DateKeyLayout = "2006-01-02"
)

// RequestRecord is one entry of the request history ring.
type RequestRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Hour      int       `json:"hour"`
	Success   bool      `json:"success"`
}

// QuotaStats holds cumulative counters that survive daily and monthly rollover.
type QuotaStats struct {
	LastRequestTime *time.Time `json:"lastRequestTime"`
	TotalRequests   int        `json:"totalRequests"`
	TotalAllowed    int        `json:"totalAllowed"`
	TotalBlocked    int        `json:"totalBlocked"`
}

// QuotaState is the persisted quota document.
type QuotaState struct {
	ManualDailyLimit *int            `json:"manualDailyLimit"`
	CurrentMonth     string          `json:"currentMonth"`
	LastResetDate    string          `json:"lastResetDate"`
	EnabledHours     []int           `json:"enabledHours"`
	DisabledHours    []int           `json:"disabledHours"`
	RequestHistory   []RequestRecord `json:"requestHistory"`
	Stats            QuotaStats      `json:"stats"`
	Version          int             `json:"version"`
	MonthlyLimit     int             `json:"monthlyLimit"`
	DailyLimit       int             `json:"dailyLimit"`
	MonthlyUsage     int             `json:"monthlyUsage"`
	DailyUsage       int             `json:"dailyUsage"`
}

// DefaultEnabledHours returns the schedule used for a fresh document: 08:00-23:59.
func DefaultEnabledHours() []int {
	hours := make([]int, 0, 16)
	for h := 8; h < HoursPerDay; h++ {
		hours = append(hours, h)
	}
	return hours
}

// DefaultQuotaState returns a fresh document for the given time and monthly budget.
func DefaultQuotaState(now time.Time, monthlyLimit int) QuotaState {
	enabled := DefaultEnabledHours()
	return QuotaState{
		Version:        QuotaStateVersion,
		MonthlyLimit:   monthlyLimit,
		DailyLimit:     DeriveDailyLimit(monthlyLimit),
		CurrentMonth:   MonthKey(now),
		LastResetDate:  DateKey(now),
		EnabledHours:   enabled,
		DisabledHours:  ComplementHours(enabled),
		RequestHistory: make([]RequestRecord, 0, HistoryCapacity),
	}
}

// DeriveDailyLimit returns floor(monthlyLimit / 30 * 0.9).
func DeriveDailyLimit(monthlyLimit int) int {
	if monthlyLimit <= 0 {
		return 0
	}
	// monthly/30*0.9 == monthly*3/100 exactly; integer math avoids float rounding.
	return monthlyLimit * 3 / 100
}

// MonthKey returns the year-month key of t in t's location.
func MonthKey(t time.Time) string {
	return t.Format(MonthKeyLayout)
}

// DateKey returns the calendar date key of t in t's location.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// ValidHour reports whether h is in 0..23.
func ValidHour(h int) bool {
	return h >= 0 && h < HoursPerDay
}

// NormalizeHours drops out-of-range and duplicate hours and sorts the result.
func NormalizeHours(hours []int) []int {
	var seen [HoursPerDay]bool
	out := make([]int, 0, len(hours))
	for _, h := range hours {
		if !ValidHour(h) || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// ComplementHours returns the hours of 0..23 not present in hours.
func ComplementHours(hours []int) []int {
	var set [HoursPerDay]bool
	for _, h := range hours {
		if ValidHour(h) {
			set[h] = true
		}
	}
	out := make([]int, 0, HoursPerDay)
	for h := range HoursPerDay {
		if !set[h] {
			out = append(out, h)
		}
	}
	return out
}

// EffectiveDailyLimit returns the manual override when set, else the derived limit.
func (s *QuotaState) EffectiveDailyLimit() int {
	if s.ManualDailyLimit != nil {
		return *s.ManualDailyLimit
	}
	return s.DailyLimit
}

// HourEnabled reports whether h is enabled and not disabled.
func (s *QuotaState) HourEnabled(h int) bool {
	return slices.Contains(s.EnabledHours, h) && !slices.Contains(s.DisabledHours, h)
}

// Clone returns a deep copy of the state.
func (s *QuotaState) Clone() QuotaState {
	c := *s
	if s.ManualDailyLimit != nil {
		v := *s.ManualDailyLimit
		c.ManualDailyLimit = &v
	}
	if s.Stats.LastRequestTime != nil {
		t := *s.Stats.LastRequestTime
		c.Stats.LastRequestTime = &t
	}
	c.EnabledHours = slices.Clone(s.EnabledHours)
	c.DisabledHours = slices.Clone(s.DisabledHours)
	c.RequestHistory = slices.Clone(s.RequestHistory)
	return c
}

// Admission is the result of an admission check. A denial is an expected
// outcome, not an error.
type Admission struct {
	Reason  string
	Allowed bool
}

// Remaining is a read-only view of the budget left in the current windows.
type Remaining struct {
	Daily        int
	Monthly      int
	DailyLimit   int
	MonthlyLimit int
	DailyUsage   int
	MonthlyUsage int
	CurrentHour  int
	ManualLimit  bool
	HourEnabled  bool
}

// DailyPercent returns the remaining share of the daily budget in percent.
func (r Remaining) DailyPercent() float64 {
	if r.DailyLimit <= 0 {
		return 0
	}
	return float64(r.Daily) / float64(r.DailyLimit) * 100
}

// MonthlyPercent returns the remaining share of the monthly budget in percent.
func (r Remaining) MonthlyPercent() float64 {
	if r.MonthlyLimit <= 0 {
		return 0
	}
	return float64(r.Monthly) / float64(r.MonthlyLimit) * 100
}

// StatsSnapshot holds the cumulative counters plus an hour histogram of the
// request history ring.
type StatsSnapshot struct {
	LastRequestTime *time.Time
	HourlyCounts    [HoursPerDay]int
	TotalRequests   int
	TotalAllowed    int
	TotalBlocked    int
	HistorySize     int
}

// PeakHour returns the hour with the most recorded requests.
func (s StatsSnapshot) PeakHour() (hour, count int) {
	for h, c := range s.HourlyCounts {
		if c > count {
			hour, count = h, c
		}
	}
	return hour, count
}
