package models

import "time"

// BatchJob is an ordered set of requests. Zero Concurrency or Timeout means
// the profile's value is used.
type BatchJob struct {
	Requests    []AnalysisRequest
	Concurrency int
	Timeout     time.Duration
}

// BatchItem is the outcome for the request at Index. Exactly one of Result
// and Error is set.
type BatchItem struct {
	Index  int             `json:"index" yaml:"index"`
	Source string          `json:"source" yaml:"source"`
	Result *AnalysisResult `json:"result,omitempty" yaml:"result,omitempty"`
	Error  *ErrorInfo      `json:"error,omitempty" yaml:"error,omitempty"`
}

func (i BatchItem) Succeeded() bool {
	return i.Error == nil && i.Result != nil
}

// LevelCounts counts results per overall level.
type LevelCounts struct {
	Excellent int `json:"excellent" yaml:"excellent"`
	Good      int `json:"good" yaml:"good"`
	Fair      int `json:"fair" yaml:"fair"`
	Poor      int `json:"poor" yaml:"poor"`
	Rejected  int `json:"rejected" yaml:"rejected"`
}

func (c *LevelCounts) Add(level QualityLevel) {
	switch level {
	case LevelExcellent:
		c.Excellent++
	case LevelGood:
		c.Good++
	case LevelFair:
		c.Fair++
	case LevelPoor:
		c.Poor++
	default:
		c.Rejected++
	}
}

func (c LevelCounts) Get(level QualityLevel) int {
	switch level {
	case LevelExcellent:
		return c.Excellent
	case LevelGood:
		return c.Good
	case LevelFair:
		return c.Fair
	case LevelPoor:
		return c.Poor
	default:
		return c.Rejected
	}
}

// BatchStatistics summarizes a settled batch.
type BatchStatistics struct {
	Total               int            `json:"total" yaml:"total"`
	Successful          int            `json:"successful" yaml:"successful"`
	Failed              int            `json:"failed" yaml:"failed"`
	LevelCounts         LevelCounts    `json:"level_counts" yaml:"level_counts"`
	FailuresByKind      map[string]int `json:"failures_by_kind,omitempty" yaml:"failures_by_kind,omitempty"`
	MeanOverallScore    float64        `json:"mean_overall_score" yaml:"mean_overall_score"`
	TotalProcessingTime float64        `json:"total_processing_time" yaml:"total_processing_time"`
}

// BatchOutcome is what the scheduler hands back once every item has settled.
type BatchOutcome struct {
	Items          []BatchItem     `json:"items" yaml:"items"`
	Statistics     BatchStatistics `json:"statistics" yaml:"statistics"`
	ProcessingTime float64         `json:"processing_time" yaml:"processing_time"`
}
