package detect

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/vantasec/dlp-behavior/internal/models"
)

func dayIncidents(day time.Time, channel string, severities ...int) []models.Incident {
	incidents := make([]models.Incident, 0, len(severities))
	for i, sev := range severities {
		incidents = append(incidents, models.Incident{
			ID:        day.Format("20060102") + "-" + string(rune('a'+i)),
			Timestamp: day.Add(time.Duration(i) * time.Hour),
			Channel:   channel,
			Severity:  sev,
		})
	}
	return incidents
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeMetricsEmpty(t *testing.T) {
	m := ComputeMetrics(nil)
	if m.TotalIncidents != 0 || m.MeanIncidentsPerDay != 0 || m.AvgSeverity != 0 {
		t.Fatalf("expected all-zero metrics, got %+v", m)
	}
	if len(m.ChannelCounts) != 0 {
		t.Fatalf("expected empty channel map, got %v", m.ChannelCounts)
	}
}

func TestComputeMetricsDailyGrouping(t *testing.T) {
	day1 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	incidents := append(dayIncidents(day1, "Email", 4, 6), dayIncidents(day2, "Web", 2, 8, 6, 4)...)
	m := ComputeMetrics(incidents)

	if m.TotalIncidents != 6 {
		t.Fatalf("total = %d, want 6", m.TotalIncidents)
	}
	// Days have 2 and 4 incidents: mean 3, sample stddev sqrt(2).
	if !almostEqual(m.MeanIncidentsPerDay, 3) {
		t.Fatalf("mean/day = %f, want 3", m.MeanIncidentsPerDay)
	}
	if !almostEqual(m.StdDevIncidentsDay, math.Sqrt(2)) {
		t.Fatalf("stddev/day = %f, want sqrt(2)", m.StdDevIncidentsDay)
	}
	if !almostEqual(m.AvgSeverity, 5) {
		t.Fatalf("avg severity = %f, want 5", m.AvgSeverity)
	}
	if m.ChannelCounts["Email"] != 2 || m.ChannelCounts["Web"] != 4 {
		t.Fatalf("channel counts = %v", m.ChannelCounts)
	}
}

func TestComputeMetricsSingleDayZeroStdDev(t *testing.T) {
	day := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	m := ComputeMetrics(dayIncidents(day, "Email", 5, 5, 5))
	if m.StdDevIncidentsDay != 0 {
		t.Fatalf("single day should have zero daily stddev, got %f", m.StdDevIncidentsDay)
	}
	if m.StdDevSeverity != 0 {
		t.Fatalf("identical severities should have zero stddev, got %f", m.StdDevSeverity)
	}
}

func TestComputeMetricsIgnoresEmptyChannel(t *testing.T) {
	day := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	incidents := dayIncidents(day, "", 5, 5)
	m := ComputeMetrics(incidents)
	if len(m.ChannelCounts) != 0 {
		t.Fatalf("blank channels must not be counted, got %v", m.ChannelCounts)
	}
}

func TestComputeMetricsIdempotent(t *testing.T) {
	day := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	incidents := append(dayIncidents(day, "Email", 3, 7, 9), dayIncidents(day.AddDate(0, 0, 2), "Endpoint", 1)...)

	first := ComputeMetrics(incidents)
	second := ComputeMetrics(incidents)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("metrics not deterministic: %+v vs %+v", first, second)
	}
}
