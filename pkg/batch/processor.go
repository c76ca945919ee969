// Package batch schedules scenario simulations with bounded concurrency
// and per-scenario failure isolation.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"simulator/pkg/engine"
	"simulator/pkg/eval"
	"simulator/pkg/logx"
)

// Processor runs batch jobs. The admission gate bounds simultaneous
// in-flight scenarios across the whole batch, independent of scenario
// count.
type Processor struct {
	engine      *engine.Engine
	evaluator   *eval.Evaluator
	store       *Store
	concurrency int64
	logger      *logx.Logger
}

// NewProcessor creates a processor over the shared engine and evaluator.
func NewProcessor(eng *engine.Engine, evaluator *eval.Evaluator, store *Store, concurrency int) *Processor {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Processor{
		engine:      eng,
		evaluator:   evaluator,
		store:       store,
		concurrency: int64(concurrency),
		logger:      logx.NewLogger("batch"),
	}
}

// Store exposes the job store for status queries and cancellation.
func (p *Processor) Store() *Store {
	return p.store
}

// CreateJob registers a pending job for the given scenarios.
func (p *Processor) CreateJob(scenarios []engine.Scenario) string {
	return p.store.Create(scenarios)
}

// Run executes a pending batch job. Every input scenario yields exactly
// one record, ordered by scenario index; a broken scenario becomes a
// failed record and never disturbs its siblings. onProgress may be nil.
func (p *Processor) Run(ctx context.Context, batchID string, onProgress ProgressFunc) (Result, error) {
	var scenarios []engine.Scenario
	started := time.Now()
	admitted := false

	err := p.store.update(batchID, func(job *Job) {
		if job.Status != StatusPending {
			return
		}
		job.Status = StatusRunning
		job.StartedAt = &started
		scenarios = job.Scenarios
		admitted = true
	})
	if err != nil {
		return Result{}, err
	}
	if !admitted {
		return Result{}, fmt.Errorf("%w: %s", ErrJobNotPending, batchID)
	}

	p.logger.Info("starting batch %s: %d scenarios, concurrency %d",
		batchID, len(scenarios), p.concurrency)

	records := make([]Record, len(scenarios))
	sem := semaphore.NewWeighted(p.concurrency)

	var wg sync.WaitGroup
	var progressMu sync.Mutex
	completed := 0

	reportProgress := func() {
		progressMu.Lock()
		completed++
		count := completed
		progressMu.Unlock()

		_ = p.store.update(batchID, func(job *Job) {
			job.CompletedScenarios = count
			job.ProgressPercentage = float64(count) / float64(len(scenarios)) * 100.0
		})
		if onProgress != nil {
			onProgress(batchID, count)
		}
	}

	for i := range scenarios {
		wg.Add(1)
		go func(index int, scenario engine.Scenario) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("scenario %d panicked: %v", index, r)
					records[index] = failedRecord(index, scenario,
						fmt.Sprintf("Ошибка обработки: %v", r), fmt.Sprintf("%v", r))
					reportProgress()
				}
			}()

			if p.store.isCancelled(batchID) {
				records[index] = failedRecord(index, scenario,
					"Обработка отменена", "batch cancelled")
				reportProgress()
				return
			}

			if err := sem.Acquire(ctx, 1); err != nil {
				records[index] = failedRecord(index, scenario,
					fmt.Sprintf("Ошибка обработки: %v", err), err.Error())
				reportProgress()
				return
			}
			defer sem.Release(1)

			records[index] = p.processScenario(ctx, index, scenario)
			reportProgress()
		}(i, scenarios[i])
	}

	wg.Wait()

	failedCount := 0
	for i := range records {
		if records[i].Status == engine.StatusFailed {
			failedCount++
		}
	}

	finishedAt := time.Now()
	finalStatus := StatusCompleted
	if p.store.isCancelled(batchID) {
		finalStatus = StatusCancelled
	}

	_ = p.store.update(batchID, func(job *Job) {
		job.Records = records
		job.CompletedScenarios = len(records)
		job.FailedScenarios = failedCount
		job.ProgressPercentage = 100.0
		job.Status = finalStatus
		if job.CompletedAt == nil {
			job.CompletedAt = &finishedAt
		}
	})

	duration := finishedAt.Sub(started).Seconds()
	p.logger.Info("batch %s finished: status=%s successful=%d failed=%d duration=%.1fs",
		batchID, finalStatus, len(records)-failedCount, failedCount, duration)

	return Result{
		BatchID:             batchID,
		Status:              finalStatus,
		TotalScenarios:      len(scenarios),
		SuccessfulScenarios: len(records) - failedCount,
		FailedScenarios:     failedCount,
		DurationSeconds:     duration,
		Records:             records,
	}, nil
}

// processScenario runs one conversation and, if it completed, its
// evaluation. A failed conversation is recorded with score 1 without
// invoking the evaluator.
func (p *Processor) processScenario(ctx context.Context, index int, scenario engine.Scenario) Record {
	name := scenario.Name
	if name == "" {
		name = fmt.Sprintf("scenario_%d", index)
	}

	p.logger.Debug("processing scenario %d: %s", index, name)

	conv := p.engine.Run(ctx, scenario)

	record := Record{
		ScenarioIndex:   index,
		Scenario:        name,
		SessionID:       conv.SessionID,
		Status:          conv.Status,
		TotalTurns:      conv.TotalTurns,
		DurationSeconds: conv.DurationSeconds,
		StartTime:       conv.StartTime,
		EndTime:         conv.EndTime,
		Turns:           conv.Turns,
	}

	if conv.Status != engine.StatusCompleted {
		errText := conv.Error
		if errText == "" {
			errText = "неизвестная ошибка"
		}
		record.Score = eval.ScoreMin
		record.Comment = fmt.Sprintf("Разговор не завершен: %s", errText)
		record.Error = conv.Error
		return record
	}

	verdict := p.evaluator.Evaluate(ctx, conv)
	record.Score = verdict.Score
	record.Comment = verdict.Comment
	record.EvaluationStatus = verdict.EvaluationStatus
	return record
}

func failedRecord(index int, scenario engine.Scenario, comment, errText string) Record {
	name := scenario.Name
	if name == "" {
		name = fmt.Sprintf("scenario_%d", index)
	}
	return Record{
		ScenarioIndex: index,
		Scenario:      name,
		Status:        engine.StatusFailed,
		Score:         eval.ScoreMin,
		Comment:       comment,
		Error:         errText,
	}
}
