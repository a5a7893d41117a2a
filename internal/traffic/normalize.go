package traffic

import (
	"log/slog"
	"slices"
	"time"

	"github.com/traffic-insights/traffic-insights/internal/constants"
)

// Normalize converts a raw traffic series into the metrics to publish for it.
//
// Only the most recent points are retained (at most constants.MaxRecentPoints),
// and points dating from strictly before now minus constants.FreshnessWindow
// are dropped. Each surviving point yields one count and one uniques metric
// carrying the point's timestamp.
//
// An empty result is not an error: the caller decides whether anything is
// worth publishing. Normalize is a pure function of its inputs, now included.
func Normalize(repository string, s Series, now time.Time) []Metric {
	if len(s.Points) == 0 {
		slog.Warn("No traffic data found", "repository", repository, "kind", s.Kind)
		return nil
	}

	points := slices.Clone(s.Points)
	slices.SortFunc(points, func(a, b Point) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	points = points[:min(len(points), constants.MaxRecentPoints)]

	cutoff := now.Add(-constants.FreshnessWindow)
	metrics := make([]Metric, 0, 2*len(points))
	for _, p := range points {
		// Points exactly at the cutoff are still publishable.
		if p.Timestamp.Before(cutoff) {
			slog.Warn("Skipping stale traffic point", "repository", repository, "kind", s.Kind, "timestamp", p.Timestamp)
			continue
		}

		metrics = append(metrics,
			Metric{
				Repository: repository,
				Kind:       s.Kind,
				Dimension:  DimensionCount,
				Value:      p.Count,
				Timestamp:  p.Timestamp,
			},
			Metric{
				Repository: repository,
				Kind:       s.Kind,
				Dimension:  DimensionUniques,
				Value:      p.Uniques,
				Timestamp:  p.Timestamp,
			})
	}

	if len(metrics) == 0 {
		slog.Warn("No recent traffic points to publish", "repository", repository, "kind", s.Kind)
	}

	return metrics
}
