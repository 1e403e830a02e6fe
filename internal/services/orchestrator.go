package services

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"city-distance-service/internal/domain"
	"city-distance-service/internal/platform/obs"
)

const (
	DefaultWorkers      = 6
	DefaultRequestDelay = 100 * time.Millisecond
)

// OrchestratorConfig bounds the orchestrator's fan-out.
type OrchestratorConfig struct {
	// Workers caps each of the three pools (jobs, destination geocoding,
	// distance computation) when the caller does not override concurrency.
	Workers int
	// RequestDelay is the minimum pause between consecutive routing
	// requests issued by the same worker.
	RequestDelay time.Duration
}

// Orchestrator fans a batch of jobs out across bounded worker pools and
// aggregates partial successes and failures as data. No destination-level
// failure is fatal to its job, and no job-level failure is fatal to the
// batch; every failure mode becomes an ErrorRecord.
type Orchestrator struct {
	geocoding *GeocodingResolver
	distances *DistanceResolver
	stats     *StatsCollector
	metrics   *obs.Metrics

	workers      int
	requestDelay time.Duration
}

func NewOrchestrator(geocoding *GeocodingResolver, distances *DistanceResolver, stats *StatsCollector, cfg OrchestratorConfig, metrics *obs.Metrics) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.RequestDelay < 0 {
		cfg.RequestDelay = DefaultRequestDelay
	}
	if metrics == nil {
		metrics = obs.NewMetricsForTesting()
	}
	return &Orchestrator{
		geocoding:    geocoding,
		distances:    distances,
		stats:        stats,
		metrics:      metrics,
		workers:      cfg.Workers,
		requestDelay: cfg.RequestDelay,
	}
}

// BatchOutcome is the full result of one ProcessBatch call.
type BatchOutcome struct {
	Results        []domain.JobResult
	Errors         []domain.ErrorRecord
	Stats          domain.StatsReport
	ElapsedSeconds float64
}

// ProcessBatch runs every job across a bounded pool and returns results
// sorted by job index, regardless of completion order. concurrency <= 0
// selects the configured default.
func (o *Orchestrator) ProcessBatch(ctx context.Context, jobs []domain.Job, concurrency int) (BatchOutcome, error) {
	if concurrency <= 0 {
		concurrency = o.workers
	}

	start := time.Now()

	sem := make(chan struct{}, concurrency)
	resultCh := make(chan domain.JobResult, len(jobs))
	var wg sync.WaitGroup

	for _, job := range jobs {
		wg.Add(1)
		go func(job domain.Job) {
			sem <- struct{}{}
			defer wg.Done()
			defer func() { <-sem }()

			resultCh <- o.processJob(ctx, job, concurrency)
		}(job)
	}

	wg.Wait()
	close(resultCh)

	results := make([]domain.JobResult, 0, len(jobs))
	for res := range resultCh {
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })

	var errs []domain.ErrorRecord
	for _, res := range results {
		errs = append(errs, res.Errors...)
	}

	elapsed := time.Since(start).Seconds()
	o.metrics.BatchDuration.Observe(elapsed)

	outcome := BatchOutcome{
		Results:        results,
		Errors:         errs,
		ElapsedSeconds: elapsed,
	}

	stats, err := o.stats.Collect(ctx)
	if err != nil {
		// A stats read failure never invalidates computed results.
		log.Printf("stats snapshot failed: %v", err)
	} else {
		outcome.Stats = stats
	}

	return outcome, nil
}

// destSlot carries one destination's intermediate state through the two
// fan-out stages.
type destSlot struct {
	name   string
	coords domain.Coordinates
	result domain.DestinationResult
	errRec *domain.ErrorRecord
	done   bool
}

// processJob drives one job through its state machine: resolve the origin,
// geocode destinations in parallel, compute distances in parallel, then
// aggregate.
func (o *Orchestrator) processJob(ctx context.Context, job domain.Job, workers int) domain.JobResult {
	start := time.Now()
	defer func() {
		o.metrics.JobDuration.Observe(time.Since(start).Seconds())
	}()

	res := domain.JobResult{
		Index:      job.Index,
		OriginName: job.OriginName,
		Status:     domain.JobPending,
	}

	originCoords, found, err := o.geocoding.Resolve(ctx, job.OriginName)
	if err != nil || !found {
		// Without an origin there is no distance work at all.
		msg := "no geocoding result for origin"
		if err != nil {
			msg = err.Error()
		}
		for _, d := range job.DestinationNames {
			res.Errors = append(res.Errors, domain.ErrorRecord{
				Kind:            domain.KindOriginUnresolved,
				OriginName:      job.OriginName,
				DestinationName: d,
				Message:         msg,
			})
		}
		res.Status = domain.JobOriginUnresolved
		res.ErrorCount = len(job.DestinationNames)
		res.ElapsedSeconds = time.Since(start).Seconds()
		return res
	}

	slots := make([]destSlot, len(job.DestinationNames))
	for i, name := range job.DestinationNames {
		slots[i].name = name
	}

	o.geocodeDestinations(ctx, job.OriginName, slots, workers)
	o.computeDistances(ctx, job.OriginName, originCoords, slots, workers)

	for i := range slots {
		slot := &slots[i]
		res.DestinationResults = append(res.DestinationResults, slot.result)
		if slot.errRec != nil {
			res.Errors = append(res.Errors, *slot.errRec)
			res.ErrorCount++
			continue
		}
		res.SuccessCount++

		// Nearest: minimum distance, ties kept at first occurrence.
		if res.NearestDistanceKm == nil || *slot.result.DistanceKm < *res.NearestDistanceKm {
			res.NearestDistanceKm = slot.result.DistanceKm
			res.NearestDestination = slot.name
		}
	}

	res.Status = domain.JobCompleted
	res.ElapsedSeconds = time.Since(start).Seconds()
	return res
}

// geocodeDestinations resolves every destination's coordinates across a
// bounded pool. A destination that fails to resolve is finalized in place
// and excluded from distance computation; its siblings continue.
func (o *Orchestrator) geocodeDestinations(ctx context.Context, originName string, slots []destSlot, workers int) {
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i := range slots {
		wg.Add(1)
		go func(slot *destSlot) {
			sem <- struct{}{}
			defer wg.Done()
			defer func() { <-sem }()

			coords, found, err := o.geocoding.Resolve(ctx, slot.name)
			if err != nil || !found {
				msg := "no geocoding result for destination"
				if err != nil {
					msg = err.Error()
				}
				slot.result = domain.DestinationResult{
					DestinationName: slot.name,
					Status:          domain.DestinationUnresolved,
				}
				slot.errRec = &domain.ErrorRecord{
					Kind:            domain.KindDestinationUnresolved,
					OriginName:      originName,
					DestinationName: slot.name,
					Message:         msg,
				}
				slot.done = true
				return
			}
			slot.coords = coords
		}(&slots[i])
	}

	wg.Wait()
}

// computeDistances fans distance lookups out across fixed workers pulling
// from a shared queue. Each worker pauses between consecutive requests as
// politeness toward the routing service; the delay is never paid after a
// worker's last request.
func (o *Orchestrator) computeDistances(ctx context.Context, originName string, originCoords domain.Coordinates, slots []destSlot, workers int) {
	pending := make([]int, 0, len(slots))
	for i := range slots {
		if !slots[i].done {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return
	}

	if workers > len(pending) {
		workers = len(pending)
	}

	work := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			first := true
			for idx := range work {
				if !first && o.requestDelay > 0 {
					if err := sleepCtx(ctx, o.requestDelay); err != nil {
						o.failSlot(&slots[idx], originName, err.Error())
						continue
					}
				}
				first = false

				slot := &slots[idx]
				resolved, err := o.distances.Resolve(ctx, originName, slot.name, originCoords, slot.coords)
				if err != nil {
					o.failSlot(slot, originName, err.Error())
					continue
				}

				km, minutes := resolved.DistanceKm, resolved.DurationMin
				slot.result = domain.DestinationResult{
					DestinationName: slot.name,
					DistanceKm:      &km,
					DurationMin:     &minutes,
					OriginOfData:    resolved.OriginOfData,
					Status:          domain.DestinationSuccess,
				}
			}
		}()
	}

	for _, idx := range pending {
		work <- idx
	}
	close(work)
	wg.Wait()
}

func (o *Orchestrator) failSlot(slot *destSlot, originName, msg string) {
	slot.result = domain.DestinationResult{
		DestinationName: slot.name,
		Status:          domain.ComputationFailed,
	}
	slot.errRec = &domain.ErrorRecord{
		Kind:            domain.KindComputationFailed,
		OriginName:      originName,
		DestinationName: slot.name,
		Message:         msg,
	}
}
