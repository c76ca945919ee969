package results

import (
	"math"
	"sort"
	"time"

	"simulator/pkg/batch"
	"simulator/pkg/engine"
)

// ScoreStats summarizes the score column.
type ScoreStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
}

// TurnStats summarizes conversation lengths.
type TurnStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
}

// DurationStats summarizes wall-clock durations.
type DurationStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Total  float64 `json:"total"`
}

// ScenarioStats aggregates per scenario name.
type ScenarioStats struct {
	Count        int     `json:"count"`
	MeanScore    float64 `json:"mean_score"`
	MeanTurns    float64 `json:"mean_turns"`
	MeanDuration float64 `json:"mean_duration_seconds"`
}

// Summary is the aggregate report for one batch.
type Summary struct {
	BatchID             string                   `json:"batch_id"`
	TotalScenarios      int                      `json:"total_scenarios"`
	SuccessfulScenarios int                      `json:"successful_scenarios"`
	FailedScenarios     int                      `json:"failed_scenarios"`
	SuccessRate         float64                  `json:"success_rate"`
	ScoreStatistics     ScoreStats               `json:"score_statistics"`
	ScoreDistribution   map[string]int           `json:"score_distribution"`
	TurnStatistics      TurnStats                `json:"turn_statistics"`
	DurationStatistics  DurationStats            `json:"duration_statistics"`
	ScenarioPerformance map[string]ScenarioStats `json:"scenario_performance"`
	GeneratedAt         time.Time                `json:"generated_at"`
}

// Summarize computes aggregate statistics over a batch's records.
func Summarize(batchID string, records []batch.Record) Summary {
	summary := Summary{
		BatchID:             batchID,
		TotalScenarios:      len(records),
		ScoreDistribution:   map[string]int{"score_1": 0, "score_2": 0, "score_3": 0},
		ScenarioPerformance: make(map[string]ScenarioStats),
		GeneratedAt:         time.Now(),
	}
	if len(records) == 0 {
		return summary
	}

	scores := make([]float64, 0, len(records))
	turns := make([]float64, 0, len(records))
	durations := make([]float64, 0, len(records))
	perScenario := make(map[string][]batch.Record)

	for i := range records {
		rec := &records[i]
		if rec.Status == engine.StatusCompleted {
			summary.SuccessfulScenarios++
		} else {
			summary.FailedScenarios++
		}
		scores = append(scores, float64(rec.Score))
		turns = append(turns, float64(rec.TotalTurns))
		durations = append(durations, rec.DurationSeconds)

		switch rec.Score {
		case 1:
			summary.ScoreDistribution["score_1"]++
		case 2:
			summary.ScoreDistribution["score_2"]++
		case 3:
			summary.ScoreDistribution["score_3"]++
		}
		perScenario[rec.Scenario] = append(perScenario[rec.Scenario], *rec)
	}

	summary.SuccessRate = float64(summary.SuccessfulScenarios) / float64(len(records))
	summary.ScoreStatistics = ScoreStats{
		Mean:   mean(scores),
		Median: median(scores),
		Std:    stddev(scores),
		Min:    int(minOf(scores)),
		Max:    int(maxOf(scores)),
	}
	summary.TurnStatistics = TurnStats{
		Mean:   mean(turns),
		Median: median(turns),
		Min:    int(minOf(turns)),
		Max:    int(maxOf(turns)),
	}
	summary.DurationStatistics = DurationStats{
		Mean:   mean(durations),
		Median: median(durations),
		Min:    minOf(durations),
		Max:    maxOf(durations),
		Total:  sum(durations),
	}

	for name, recs := range perScenario {
		var scoreSum, turnSum, durSum float64
		for i := range recs {
			scoreSum += float64(recs[i].Score)
			turnSum += float64(recs[i].TotalTurns)
			durSum += recs[i].DurationSeconds
		}
		n := float64(len(recs))
		summary.ScenarioPerformance[name] = ScenarioStats{
			Count:        len(recs),
			MeanScore:    scoreSum / n,
			MeanTurns:    turnSum / n,
			MeanDuration: durSum / n,
		}
	}

	return summary
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// stddev is the sample standard deviation (n-1 denominator).
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	lowest := values[0]
	for _, v := range values[1:] {
		if v < lowest {
			lowest = v
		}
	}
	return lowest
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	highest := values[0]
	for _, v := range values[1:] {
		if v > highest {
			highest = v
		}
	}
	return highest
}
