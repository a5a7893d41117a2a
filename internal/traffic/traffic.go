// Package traffic is the implementation of the traffic normalization component.
// The traffic component defines the traffic data model and is responsible for
// turning a raw per-day traffic series into a bounded set of publishable metrics.
package traffic

import "time"

// Kind identifies which traffic dimension a series measures.
type Kind string

const (
	// KindClones measures clone operations.
	KindClones Kind = "clones"
	// KindViews measures view operations.
	KindViews Kind = "views"
)

// Kinds lists every kind processed for a repository, in processing order.
var Kinds = []Kind{KindClones, KindViews}

// Dimension is the sub-aggregation of a traffic kind.
type Dimension string

const (
	// DimensionCount is the total number of events for a day.
	DimensionCount Dimension = "count"
	// DimensionUniques is the number of distinct actors for a day.
	DimensionUniques Dimension = "uniques"
)

// Point is one day's reported traffic for one kind.
// Uniques is at most Count; both are non-negative.
type Point struct {
	Timestamp time.Time
	Count     int
	Uniques   int
}

// Series is the full payload for one (repository, kind) pair.
//
// Points are in upstream order, which is not guaranteed to be sorted.
// Raw holds the unmodified upstream payload so it can be preserved in the
// log sink with full fidelity.
type Series struct {
	Kind   Kind
	Points []Point
	Raw    []byte
}

// Metric is one normalized value ready for publishing.
type Metric struct {
	Repository string
	Kind       Kind
	Dimension  Dimension
	Value      int
	Timestamp  time.Time
}
