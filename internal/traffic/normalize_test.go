package traffic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traffic-insights/traffic-insights/internal/testutils"
	"github.com/traffic-insights/traffic-insights/internal/traffic"
)

// now is a fixed reference clock so that the freshness window is deterministic.
var now = time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)

// day returns the calendar day n days before now.
func day(n int) time.Time {
	return now.AddDate(0, 0, -n)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		kind   traffic.Kind
		points []traffic.Point
	}{
		"Empty series": {},
		"Single fresh point": {
			points: []traffic.Point{
				{Timestamp: day(1), Count: 42, Uniques: 7},
			},
		},
		"Two fresh points": {
			points: []traffic.Point{
				{Timestamp: day(2), Count: 10, Uniques: 4},
				{Timestamp: day(1), Count: 20, Uniques: 5},
			},
		},
		"Five points only three most recent": {
			points: []traffic.Point{
				{Timestamp: day(5), Count: 1, Uniques: 1},
				{Timestamp: day(4), Count: 2, Uniques: 1},
				{Timestamp: day(3), Count: 3, Uniques: 2},
				{Timestamp: day(2), Count: 4, Uniques: 2},
				{Timestamp: day(1), Count: 5, Uniques: 3},
			},
		},
		"Unsorted input sorted by recency": {
			points: []traffic.Point{
				{Timestamp: day(1), Count: 5, Uniques: 3},
				{Timestamp: day(4), Count: 2, Uniques: 1},
				{Timestamp: day(2), Count: 4, Uniques: 2},
				{Timestamp: day(5), Count: 1, Uniques: 1},
				{Timestamp: day(3), Count: 3, Uniques: 2},
			},
		},
		"Stale point among recent dropped": {
			points: []traffic.Point{
				{Timestamp: day(16), Count: 8, Uniques: 2},
				{Timestamp: day(2), Count: 4, Uniques: 2},
				{Timestamp: day(1), Count: 5, Uniques: 3},
			},
		},
		"Point exactly at cutoff published": {
			points: []traffic.Point{
				{Timestamp: day(14), Count: 9, Uniques: 6},
			},
		},
		"Point one day past cutoff dropped": {
			points: []traffic.Point{
				{Timestamp: day(15), Count: 9, Uniques: 6},
			},
		},
		"All points stale": {
			points: []traffic.Point{
				{Timestamp: day(20), Count: 1, Uniques: 1},
				{Timestamp: day(18), Count: 2, Uniques: 1},
				{Timestamp: day(16), Count: 3, Uniques: 2},
			},
		},
		"Views kind": {
			kind: traffic.KindViews,
			points: []traffic.Point{
				{Timestamp: day(1), Count: 100, Uniques: 30},
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if tc.kind == "" {
				tc.kind = traffic.KindClones
			}
			s := traffic.Series{Kind: tc.kind, Points: tc.points}

			got := traffic.Normalize("x/y", s, now)

			want := testutils.LoadWithUpdateFromGoldenYAML(t, got)
			require.Equal(t, want, got, "Normalize should return the expected metrics")
		})
	}
}

func TestNormalizeIsPure(t *testing.T) {
	t.Parallel()

	points := []traffic.Point{
		{Timestamp: day(1), Count: 5, Uniques: 3},
		{Timestamp: day(4), Count: 2, Uniques: 1},
		{Timestamp: day(2), Count: 4, Uniques: 2},
	}
	s := traffic.Series{Kind: traffic.KindClones, Points: points}

	first := traffic.Normalize("x/y", s, now)
	second := traffic.Normalize("x/y", s, now)

	require.Equal(t, first, second, "Normalize should be deterministic for identical inputs")
	assert.Equal(t, day(1), s.Points[0].Timestamp, "Normalize should not reorder the input series")
}

func TestNormalizeBoundsOutput(t *testing.T) {
	t.Parallel()

	// 30 fresh days, far more than the publishable window.
	var points []traffic.Point
	for i := 1; i <= 30; i++ {
		points = append(points, traffic.Point{Timestamp: day(i % 14), Count: i, Uniques: i / 2})
	}
	s := traffic.Series{Kind: traffic.KindViews, Points: points}

	got := traffic.Normalize("x/y", s, now)
	require.Len(t, got, 6, "Normalize should emit two metrics for each of the three retained points")
}
