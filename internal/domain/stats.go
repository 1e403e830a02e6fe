package domain

// CounterSet holds the raw session counters and live entry count for one
// record kind.
type CounterSet struct {
	Hits        int64
	Misses      int64
	Saves       int64
	LiveEntries int64
}

// StatsSnapshot is the raw view over the cache store's counters and size.
// Derived rates (hit percentages) are computed by the stats collector, not
// stored.
type StatsSnapshot struct {
	Coordinates   CounterSet
	Distances     CounterSet
	TotalEntries  int64
	DatabasePath  string
	FileSizeBytes int64
	SessionID     string
}

// StatsReport is a snapshot plus derived hit rates, in percent.
// A kind with zero lookups reports a rate of 0.
type StatsReport struct {
	Snapshot          StatsSnapshot
	CoordinateHitRate float64
	DistanceHitRate   float64
	OverallHitRate    float64
}
