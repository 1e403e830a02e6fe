package domain

// JobStatus tracks a job through its lifecycle. A job either fails to
// resolve its origin (terminal) or runs to completion; destination-level
// failures never change the job status.
type JobStatus string

const (
	JobPending          JobStatus = "pending"
	JobOriginUnresolved JobStatus = "origin_unresolved"
	JobCompleted        JobStatus = "completed"
)

// DestinationStatus describes the outcome for a single destination.
type DestinationStatus string

const (
	DestinationSuccess    DestinationStatus = "success"
	DestinationUnresolved DestinationStatus = "destination_unresolved"
	ComputationFailed     DestinationStatus = "computation_failed"
)

// DataSource records whether a result came from the persistent cache or a
// fresh external lookup.
type DataSource string

const (
	SourceCache DataSource = "cache"
	SourceFresh DataSource = "fresh"
)

// ErrorKind classifies a failure inside a batch. Failures are reported as
// data; none of them aborts the batch.
type ErrorKind string

const (
	KindOriginUnresolved      ErrorKind = "origin_unresolved"
	KindDestinationUnresolved ErrorKind = "destination_unresolved"
	KindComputationFailed     ErrorKind = "computation_failed"
)

// ErrorRecord is one contained failure, scoped to an origin/destination pair.
type ErrorRecord struct {
	Kind            ErrorKind
	OriginName      string
	DestinationName string
	Message         string
}

// Job is one origin and its candidate destinations, processed as a unit.
// Index preserves the position in the submitted batch so results can be
// returned in a deterministic order.
type Job struct {
	Index            int
	OriginName       string
	DestinationNames []string
}

// NewJob builds a Job, dropping empty destination names and any destination
// equal to the origin after normalization. A self-pair must never reach the
// cache or the routing service.
func NewJob(index int, origin string, destinations []string) Job {
	originKey := Canonical(origin)

	kept := make([]string, 0, len(destinations))
	for _, d := range destinations {
		c := Canonical(d)
		if c == "" || c == originKey {
			continue
		}
		kept = append(kept, d)
	}

	return Job{
		Index:            index,
		OriginName:       origin,
		DestinationNames: kept,
	}
}

// DestinationResult is the outcome for one destination of a job.
// DistanceKm and DurationMin are nil unless Status is DestinationSuccess.
type DestinationResult struct {
	DestinationName string
	DistanceKm      *float64
	DurationMin     *float64
	OriginOfData    DataSource
	Status          DestinationStatus
}

// JobResult aggregates one job's destination outcomes and errors.
type JobResult struct {
	Index              int
	OriginName         string
	DestinationResults []DestinationResult
	NearestDestination string
	NearestDistanceKm  *float64
	SuccessCount       int
	ErrorCount         int
	ElapsedSeconds     float64
	Status             JobStatus
	Errors             []ErrorRecord
}
