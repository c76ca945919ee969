package results

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"simulator/pkg/batch"
	"simulator/pkg/engine"
)

func TestSummarize(t *testing.T) {
	records := []batch.Record{
		{Scenario: "a", Status: engine.StatusCompleted, Score: 3, TotalTurns: 4, DurationSeconds: 10},
		{Scenario: "a", Status: engine.StatusCompleted, Score: 2, TotalTurns: 6, DurationSeconds: 20},
		{Scenario: "b", Status: engine.StatusFailed, Score: 1, TotalTurns: 2, DurationSeconds: 6},
	}

	s := Summarize("batch-x", records)

	assert.Equal(t, "batch-x", s.BatchID)
	assert.Equal(t, 3, s.TotalScenarios)
	assert.Equal(t, 2, s.SuccessfulScenarios)
	assert.Equal(t, 1, s.FailedScenarios)
	assert.InDelta(t, 2.0/3.0, s.SuccessRate, 1e-9)

	assert.InDelta(t, 2.0, s.ScoreStatistics.Mean, 1e-9)
	assert.InDelta(t, 2.0, s.ScoreStatistics.Median, 1e-9)
	assert.InDelta(t, 1.0, s.ScoreStatistics.Std, 1e-9)
	assert.Equal(t, 1, s.ScoreStatistics.Min)
	assert.Equal(t, 3, s.ScoreStatistics.Max)

	assert.Equal(t, map[string]int{"score_1": 1, "score_2": 1, "score_3": 1}, s.ScoreDistribution)

	assert.InDelta(t, 4.0, s.TurnStatistics.Mean, 1e-9)
	assert.Equal(t, 2, s.TurnStatistics.Min)
	assert.Equal(t, 6, s.TurnStatistics.Max)

	assert.InDelta(t, 12.0, s.DurationStatistics.Mean, 1e-9)
	assert.InDelta(t, 10.0, s.DurationStatistics.Median, 1e-9)
	assert.InDelta(t, 36.0, s.DurationStatistics.Total, 1e-9)

	a := s.ScenarioPerformance["a"]
	assert.Equal(t, 2, a.Count)
	assert.InDelta(t, 2.5, a.MeanScore, 1e-9)
	assert.InDelta(t, 5.0, a.MeanTurns, 1e-9)
	assert.InDelta(t, 15.0, a.MeanDuration, 1e-9)

	b := s.ScenarioPerformance["b"]
	assert.Equal(t, 1, b.Count)
	assert.InDelta(t, 1.0, b.MeanScore, 1e-9)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize("batch-x", nil)

	assert.Equal(t, 0, s.TotalScenarios)
	assert.Equal(t, 0.0, s.SuccessRate)
	assert.Equal(t, map[string]int{"score_1": 0, "score_2": 0, "score_3": 0}, s.ScoreDistribution)
	assert.Empty(t, s.ScenarioPerformance)
	assert.False(t, s.GeneratedAt.IsZero())
}

func TestMedianEvenCount(t *testing.T) {
	assert.InDelta(t, 2.5, median([]float64{4, 1, 3, 2}), 1e-9)
}

func TestStddevSingleValue(t *testing.T) {
	assert.Equal(t, 0.0, stddev([]float64{2}))
}
