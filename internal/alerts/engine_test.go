package alerts

import (
	"testing"
	"time"

	"farm-alert-service/internal/logging"
	"farm-alert-service/internal/models"
)

func newTestEngine() *Engine {
	return NewEngine(NewStore(), logging.NewNop())
}

func f(v float64) *float64 { return &v }

func TestEngine_CreateFromReading(t *testing.T) {
	tests := []struct {
		name    string
		reading models.Reading
		want    map[models.AlertType]models.Severity
	}{
		{
			name:    "hard frost",
			reading: models.Reading{Temperature: f(-6), Location: "North Field"},
			want:    map[models.AlertType]models.Severity{models.AlertFrost: models.SeverityCritical},
		},
		{
			name:    "light frost",
			reading: models.Reading{Temperature: f(-2)},
			want:    map[models.AlertType]models.Severity{models.AlertFrost: models.SeverityHigh},
		},
		{
			name:    "disease conditions",
			reading: models.Reading{Temperature: f(20), Humidity: f(85)},
			want:    map[models.AlertType]models.Severity{models.AlertDiseaseRisk: models.SeverityMedium},
		},
		{
			name:    "deep cold raises two alerts",
			reading: models.Reading{Temperature: f(-20)},
			want: map[models.AlertType]models.Severity{
				models.AlertFrost:       models.SeverityCritical,
				models.AlertExtremeCold: models.SeverityCritical,
			},
		},
		{
			name:    "heat wave",
			reading: models.Reading{Temperature: f(41)},
			want:    map[models.AlertType]models.Severity{models.AlertExtremeHeat: models.SeverityCritical},
		},
		{
			name:    "storm winds",
			reading: models.Reading{WindSpeed: f(60)},
			want:    map[models.AlertType]models.Severity{models.AlertHighWinds: models.SeverityHigh},
		},
		{
			name:    "mild day",
			reading: models.Reading{Temperature: f(18), Humidity: f(50), WindSpeed: f(10)},
			want:    map[models.AlertType]models.Severity{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine()
			created := e.CreateFromReading("farm-1", tt.reading)

			if len(created) != len(tt.want) {
				t.Fatalf("CreateFromReading() produced %d alerts, want %d: %+v", len(created), len(tt.want), created)
			}
			for _, a := range created {
				wantSev, ok := tt.want[a.Type]
				if !ok {
					t.Errorf("unexpected alert type %s", a.Type)
					continue
				}
				if a.Severity != wantSev {
					t.Errorf("alert %s severity = %s, want %s", a.Type, a.Severity, wantSev)
				}
				if a.Status != models.StatusActive {
					t.Errorf("alert %s status = %s, want active", a.Type, a.Status)
				}
				if a.ID == "" || a.CreatedAt.IsZero() {
					t.Errorf("alert %s missing id or created_at", a.Type)
				}
			}
		})
	}
}

func TestEngine_CreateFromReading_IsIdempotentPerCall(t *testing.T) {
	e := newTestEngine()
	r := models.Reading{Temperature: f(-6)}

	first := e.CreateFromReading("farm-1", r)
	second := e.CreateFromReading("farm-1", r)

	// Each call independently appends; nothing is overwritten.
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("each evaluation should produce one alert, got %d and %d", len(first), len(second))
	}
	if first[0].ID == second[0].ID {
		t.Error("alerts from separate evaluations must have distinct ids")
	}
	if got := e.Stats("farm-1").Total; got != 2 {
		t.Errorf("Stats().Total = %d, want 2", got)
	}
}

func TestEngine_Create_AttachesRecommendations(t *testing.T) {
	e := newTestEngine()
	a := e.Create("farm-1", models.AlertSpec{
		Type:     models.AlertFrost,
		Severity: models.SeverityHigh,
		Title:    "Frost warning",
	})
	if len(a.RecommendedActions) == 0 {
		t.Error("expected default recommended actions for frost")
	}
}

func TestEngine_Resolve(t *testing.T) {
	e := newTestEngine()
	a := e.Create("farm-1", models.AlertSpec{
		Type:     models.AlertDrought,
		Severity: models.SeverityHigh,
		Title:    "Drought conditions",
	})

	resolved := e.Resolve(a.ID)
	if resolved == nil {
		t.Fatal("Resolve() returned nil for known alert")
	}
	if resolved.Status != models.StatusResolved || resolved.ResolvedAt == nil {
		t.Errorf("Resolve() = status %s, resolved_at %v", resolved.Status, resolved.ResolvedAt)
	}

	// Lifecycle is monotonic: re-resolving and resolving unknowns are
	// harmless no-ops.
	if e.Resolve(a.ID) != nil {
		t.Error("Resolve() on already-resolved alert should return nil")
	}
	if e.Resolve("no-such-id") != nil {
		t.Error("Resolve() on unknown id should return nil")
	}
	if got := e.Get(a.ID); got.Status != models.StatusResolved {
		t.Errorf("status regressed to %s", got.Status)
	}
}

func TestEngine_SweepExpired(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	expired := e.Create("farm-1", models.AlertSpec{
		Type: models.AlertHail, Severity: models.SeverityMedium, Title: "Hail", EndTime: &past,
	})
	e.Create("farm-1", models.AlertSpec{
		Type: models.AlertFlood, Severity: models.SeverityHigh, Title: "Flood", EndTime: &future,
	})
	e.Create("farm-1", models.AlertSpec{
		Type: models.AlertDrought, Severity: models.SeverityHigh, Title: "Drought",
	})
	resolved := e.Create("farm-1", models.AlertSpec{
		Type: models.AlertFrost, Severity: models.SeverityHigh, Title: "Frost", EndTime: &past,
	})
	e.Resolve(resolved.ID)

	if got := e.SweepExpired(now); got != 1 {
		t.Fatalf("SweepExpired() = %d, want 1", got)
	}
	if got := e.Get(expired.ID); got.Status != models.StatusExpired {
		t.Errorf("past-end alert status = %s, want expired", got.Status)
	}
	if got := e.Get(resolved.ID); got.Status != models.StatusResolved {
		t.Errorf("resolved alert status = %s, want resolved", got.Status)
	}
	if got := e.SweepExpired(now); got != 0 {
		t.Errorf("second SweepExpired() = %d, want 0", got)
	}
}

func TestEngine_QueryAndActive(t *testing.T) {
	e := newTestEngine()
	a := e.Create("farm-1", models.AlertSpec{Type: models.AlertFrost, Severity: models.SeverityHigh, Title: "Frost"})
	e.Create("farm-1", models.AlertSpec{Type: models.AlertDrought, Severity: models.SeverityCritical, Title: "Drought"})
	e.Create("farm-2", models.AlertSpec{Type: models.AlertFrost, Severity: models.SeverityLow, Title: "Frost"})
	e.Resolve(a.ID)

	tests := []struct {
		name   string
		farmID string
		filter models.AlertFilter
		want   int
	}{
		{"all for farm", "farm-1", models.AlertFilter{}, 2},
		{"by type", "farm-1", models.AlertFilter{Type: models.AlertFrost}, 1},
		{"by severity", "farm-1", models.AlertFilter{Severity: models.SeverityCritical}, 1},
		{"by status", "farm-1", models.AlertFilter{Status: models.StatusResolved}, 1},
		{"other farm", "farm-2", models.AlertFilter{}, 1},
		{"no match", "farm-2", models.AlertFilter{Type: models.AlertHail}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(e.Query(tt.farmID, tt.filter)); got != tt.want {
				t.Errorf("Query() = %d alerts, want %d", got, tt.want)
			}
		})
	}

	if got := len(e.Active("farm-1")); got != 1 {
		t.Errorf("Active() = %d, want 1", got)
	}
}

func TestEngine_Stats(t *testing.T) {
	e := newTestEngine()
	e.Create("farm-1", models.AlertSpec{Type: models.AlertFrost, Severity: models.SeverityHigh, Title: "Frost"})
	e.Create("farm-1", models.AlertSpec{Type: models.AlertFrost, Severity: models.SeverityCritical, Title: "Frost"})
	e.Create("farm-1", models.AlertSpec{Type: models.AlertDrought, Severity: models.SeverityHigh, Title: "Drought"})

	stats := e.Stats("farm-1")
	if stats.Total != 3 || stats.Active != 3 {
		t.Errorf("Stats() total=%d active=%d, want 3/3", stats.Total, stats.Active)
	}
	if stats.ByType[models.AlertFrost] != 2 {
		t.Errorf("ByType[frost] = %d, want 2", stats.ByType[models.AlertFrost])
	}
	if stats.BySeverity[models.SeverityHigh] != 2 {
		t.Errorf("BySeverity[high] = %d, want 2", stats.BySeverity[models.SeverityHigh])
	}
}

func TestRecommendations(t *testing.T) {
	if got := Recommendations(models.AlertFrost); len(got) == 0 {
		t.Error("Recommendations(frost) should not be empty")
	}
	if got := Recommendations(models.AlertType("locusts")); got != nil {
		t.Errorf("Recommendations(unknown) = %v, want nil", got)
	}
}

func TestSeverityRank(t *testing.T) {
	order := []models.Severity{models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("Rank(%s) should be below Rank(%s)", order[i-1], order[i])
		}
	}
	if models.Severity("bogus").Rank() >= models.SeverityLow.Rank() {
		t.Error("unknown severity should rank below low")
	}
}
