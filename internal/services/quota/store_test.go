package quota

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/j-veylop/mediagate/internal/models"
)

func TestDecode_BackfillsMissingFields(t *testing.T) {
	now := at(2026, 10, 18, 10, 0)

	s, err := Decode([]byte(`{"dailyUsage": 3}`), now, 1500)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}

	if s.DailyUsage != 3 {
		t.Errorf("DailyUsage = %d, want 3", s.DailyUsage)
	}
	if s.MonthlyLimit != 1500 || s.DailyLimit != 45 {
		t.Errorf("limits = %d/%d, want 1500/45", s.MonthlyLimit, s.DailyLimit)
	}
	if s.CurrentMonth != "2026-10" || s.LastResetDate != "2026-10-18" {
		t.Errorf("keys = %q/%q, want current date", s.CurrentMonth, s.LastResetDate)
	}
	if !slices.Equal(s.EnabledHours, models.DefaultEnabledHours()) {
		t.Errorf("EnabledHours = %v, want defaults", s.EnabledHours)
	}
	if s.Version != models.QuotaStateVersion {
		t.Errorf("Version = %d, want %d", s.Version, models.QuotaStateVersion)
	}
}

func TestDecode_Normalizes(t *testing.T) {
	now := at(2026, 10, 18, 10, 0)

	tests := []struct {
		check func(t *testing.T, s models.QuotaState)
		name  string
		doc   string
	}{
		{
			name: "negative counters clamp to zero",
			doc:  `{"dailyUsage": -4, "monthlyUsage": -1, "stats": {"totalRequests": -2}}`,
			check: func(t *testing.T, s models.QuotaState) {
				if s.DailyUsage != 0 || s.MonthlyUsage != 0 || s.Stats.TotalRequests != 0 {
					t.Errorf("counters = %d/%d/%d, want zeros", s.DailyUsage, s.MonthlyUsage, s.Stats.TotalRequests)
				}
			},
		},
		{
			name: "dailyLimit is derived from monthlyLimit",
			doc:  `{"monthlyLimit": 3000, "dailyLimit": 7}`,
			check: func(t *testing.T, s models.QuotaState) {
				if s.DailyLimit != 90 {
					t.Errorf("DailyLimit = %d, want 90", s.DailyLimit)
				}
			},
		},
		{
			name: "null enabledHours falls back to defaults",
			doc:  `{"enabledHours": null}`,
			check: func(t *testing.T, s models.QuotaState) {
				if !slices.Equal(s.EnabledHours, models.DefaultEnabledHours()) {
					t.Errorf("EnabledHours = %v, want defaults", s.EnabledHours)
				}
			},
		},
		{
			name: "empty enabledHours disables every hour",
			doc:  `{"enabledHours": []}`,
			check: func(t *testing.T, s models.QuotaState) {
				if len(s.EnabledHours) != 0 || len(s.DisabledHours) != models.HoursPerDay {
					t.Errorf("schedule = %v / %v, want all disabled", s.EnabledHours, s.DisabledHours)
				}
			},
		},
		{
			name: "explicitly disabled hours win",
			doc:  `{"enabledHours": [1, 2, 3, 99, 2], "disabledHours": [2]}`,
			check: func(t *testing.T, s models.QuotaState) {
				if !slices.Equal(s.EnabledHours, []int{1, 3}) {
					t.Errorf("EnabledHours = %v, want [1 3]", s.EnabledHours)
				}
				if len(s.DisabledHours) != 22 {
					t.Errorf("DisabledHours has %d entries, want 22", len(s.DisabledHours))
				}
			},
		},
		{
			name: "missing disabledHours is re-derived",
			doc:  `{"enabledHours": [0, 1]}`,
			check: func(t *testing.T, s models.QuotaState) {
				if !slices.Equal(s.EnabledHours, []int{0, 1}) {
					t.Errorf("EnabledHours = %v, want [0 1]", s.EnabledHours)
				}
			},
		},
		{
			name: "negative manual limit is dropped",
			doc:  `{"manualDailyLimit": -5}`,
			check: func(t *testing.T, s models.QuotaState) {
				if s.ManualDailyLimit != nil {
					t.Errorf("ManualDailyLimit = %d, want nil", *s.ManualDailyLimit)
				}
			},
		},
		{
			name: "non-positive monthlyLimit uses the default",
			doc:  `{"monthlyLimit": 0}`,
			check: func(t *testing.T, s models.QuotaState) {
				if s.MonthlyLimit != 1500 {
					t.Errorf("MonthlyLimit = %d, want 1500", s.MonthlyLimit)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Decode([]byte(tt.doc), now, 1500)
			if err != nil {
				t.Fatalf("Decode() failed: %v", err)
			}
			tt.check(t, s)
		})
	}
}

func TestDecode_TrimsHistory(t *testing.T) {
	var records []string
	for i := range 130 {
		records = append(records, fmt.Sprintf(`{"timestamp":"2026-10-18T10:00:%02dZ","hour":%d,"success":true}`, i%60, i%24))
	}
	// One record with an invalid hour is dropped before trimming.
	records = append(records, `{"timestamp":"2026-10-18T10:00:00Z","hour":42,"success":true}`)
	doc := `{"requestHistory": [` + strings.Join(records, ",") + `]}`

	s, err := Decode([]byte(doc), at(2026, 10, 18, 10, 0), 1500)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if len(s.RequestHistory) != models.HistoryCapacity {
		t.Fatalf("history length = %d, want %d", len(s.RequestHistory), models.HistoryCapacity)
	}
	if got := s.RequestHistory[0].Hour; got != 30%24 {
		t.Errorf("oldest kept hour = %d, want %d", got, 30%24)
	}
}

func TestDecode_Invalid(t *testing.T) {
	now := at(2026, 10, 18, 10, 0)
	for _, doc := range []string{"", "   ", "{", `{"dailyUsage": "many"}`} {
		if _, err := Decode([]byte(doc), now, 1500); err == nil {
			t.Errorf("Decode(%q) should fail", doc)
		}
	}
}

func TestDecode_NewerVersionTolerated(t *testing.T) {
	s, err := Decode([]byte(`{"version": 9, "dailyUsage": 1}`), at(2026, 10, 18, 10, 0), 1500)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if s.DailyUsage != 1 || s.Version != models.QuotaStateVersion {
		t.Errorf("Decode() = usage %d version %d, want 1 and %d", s.DailyUsage, s.Version, models.QuotaStateVersion)
	}
}

func TestStore_WriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.json")
	st := NewStore(path)

	state := models.DefaultQuotaState(at(2026, 10, 18, 10, 0), 1500)
	state.DailyUsage = 12

	written, err := st.Write(&state)
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	read, err := st.Read()
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if string(read) != string(written) {
		t.Error("Read() bytes differ from Write() bytes")
	}

	decoded, err := Decode(read, at(2026, 10, 18, 11, 0), 1500)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if decoded.DailyUsage != 12 {
		t.Errorf("DailyUsage = %d, want 12", decoded.DailyUsage)
	}
	if !strings.Contains(string(read), `"manualDailyLimit": null`) {
		t.Error("document should carry the manualDailyLimit key")
	}
}

func TestStore_WriteMissingDirectory(t *testing.T) {
	st := NewStore(filepath.Join(t.TempDir(), "missing", "quota.json"))
	state := models.DefaultQuotaState(at(2026, 10, 18, 10, 0), 1500)

	if _, err := st.Write(&state); err == nil {
		t.Error("Write() into a missing directory should fail")
	}
}
