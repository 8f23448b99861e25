package core

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"gwi.com/cardscan/internal/store"
)

const (
	ChangePositive = "positive"
	ChangeNegative = "negative"

	baselineAccuracy = 95
	maxAccuracyBonus = 4
	maxAccuracy      = 99
)

type DashboardMetric struct {
	Title      string `json:"title"`
	Value      string `json:"value"`
	Change     string `json:"change"`
	ChangeType string `json:"changeType"`
}

// Change is a percentage difference with its direction.
type Change struct {
	Value float64 `json:"value"`
	Type  string  `json:"type"`
}

// PercentChange compares current against previous. A zero previous value
// reports 100% growth when current is positive and 0% otherwise; it is
// never negative.
func PercentChange(current, previous int) Change {
	if previous == 0 {
		if current > 0 {
			return Change{Value: 100, Type: ChangePositive}
		}
		return Change{Value: 0, Type: ChangePositive}
	}

	diff := float64(current-previous) / float64(previous) * 100
	change := Change{Value: math.Abs(diff), Type: ChangePositive}
	if current < previous {
		change.Type = ChangeNegative
	}
	return change
}

// Accuracy is 95 plus up to 4 points for the share of records with text.
func Accuracy(nonEmpty, total int) int {
	if total <= 0 {
		return baselineAccuracy
	}
	bonus := int(math.Floor(float64(nonEmpty) / float64(total) * maxAccuracyBonus))
	return min(baselineAccuracy+bonus, maxAccuracy)
}

type countsReader interface {
	ExtractionCounts(ctx context.Context, caller store.Caller, cutoff, windowStart time.Time) (*store.ExtractionCounts, error)
}

// MetricsService builds the four dashboard metrics for one user.
type MetricsService struct {
	store countsReader
}

func NewMetricsService(s countsReader) *MetricsService {
	return &MetricsService{store: s}
}

// Dashboard uses "one month before now" as the cutoff between this month
// and the previous one, and one more month back for the previous window.
func (s *MetricsService) Dashboard(ctx context.Context, caller store.Caller, now time.Time) ([]DashboardMetric, error) {
	cutoff := now.AddDate(0, -1, 0)
	windowStart := now.AddDate(0, -2, 0)

	counts, err := s.store.ExtractionCounts(ctx, caller, cutoff, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to load extraction counts: %w", err)
	}
	return BuildMetrics(counts), nil
}

func BuildMetrics(c *store.ExtractionCounts) []DashboardMetric {
	totalChange := PercentChange(c.Total, c.TotalBeforeCutoff)
	scannedChange := PercentChange(c.SinceCutoff, c.PreviousWindow)

	var avgMS float64
	if c.AverageProcessingTime != nil {
		avgMS = *c.AverageProcessingTime
	}

	return []DashboardMetric{
		{
			Title:      "Total Cards",
			Value:      humanize.Comma(int64(c.Total)),
			Change:     formatChange(totalChange, "growth"),
			ChangeType: totalChange.Type,
		},
		{
			Title:      "Cards Scanned",
			Value:      humanize.Comma(int64(c.SinceCutoff)),
			Change:     formatChange(scannedChange, "from last month"),
			ChangeType: scannedChange.Type,
		},
		{
			Title:      "OCR Accuracy",
			Value:      fmt.Sprintf("%d%%", Accuracy(c.NonEmptyText, c.Total)),
			Change:     "High precision scanning",
			ChangeType: ChangePositive,
		},
		{
			Title:      "Avg Speed",
			Value:      fmt.Sprintf("%dms", int64(math.Round(avgMS))),
			Change:     "Lightning fast processing",
			ChangeType: ChangePositive,
		},
	}
}

func formatChange(c Change, suffix string) string {
	sign := "+"
	if c.Type == ChangeNegative {
		sign = "-"
	}
	return fmt.Sprintf("%s%.1f%% %s", sign, c.Value, suffix)
}
