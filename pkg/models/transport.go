package models

// TaskType names the operations the task protocol accepts.
type TaskType string

const (
	TaskAnalyzeImage TaskType = "analyze_image"
	TaskAnalyzeBatch TaskType = "analyze_batch"
	TaskHealthCheck  TaskType = "health_check"
)

type TaskStatus string

const (
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Task is one inbound delivery from the queue or the HTTP API.
type Task struct {
	TaskID      string           `json:"task_id,omitempty"`
	TaskType    TaskType         `json:"task_type"`
	ImagePath   string           `json:"image_path,omitempty"`
	ImagePaths  []string         `json:"image_paths,omitempty"`
	Config      string           `json:"config,omitempty"`
	Concurrency int              `json:"concurrency,omitempty"`
	Options     *AnalysisOptions `json:"options,omitempty"`
}

// TaskResponse mirrors the analysis result or failure for a Task.
type TaskResponse struct {
	TaskID         string           `json:"task_id" yaml:"task_id"`
	TaskType       TaskType         `json:"task_type" yaml:"task_type"`
	Status         TaskStatus       `json:"status" yaml:"status"`
	Result         *AnalysisResult  `json:"result,omitempty" yaml:"result,omitempty"`
	Results        []BatchItem      `json:"results,omitempty" yaml:"results,omitempty"`
	Statistics     *BatchStatistics `json:"statistics,omitempty" yaml:"statistics,omitempty"`
	Health         *HealthReport    `json:"health,omitempty" yaml:"health,omitempty"`
	Error          *ErrorInfo       `json:"error,omitempty" yaml:"error,omitempty"`
	ProcessingTime float64          `json:"processing_time" yaml:"processing_time"`
}

// HealthReport is the payload of a health_check task.
type HealthReport struct {
	Status            string   `json:"status" yaml:"status"`
	Version           string   `json:"version" yaml:"version"`
	UptimeSeconds     float64  `json:"uptime_seconds" yaml:"uptime_seconds"`
	Profiles          []string `json:"profiles" yaml:"profiles"`
	Goroutines        int      `json:"goroutines" yaml:"goroutines"`
	MemoryTotal       uint64   `json:"memory_total,omitempty" yaml:"memory_total,omitempty"`
	MemoryUsed        uint64   `json:"memory_used,omitempty" yaml:"memory_used,omitempty"`
	MemoryUsedPercent float64  `json:"memory_used_percent,omitempty" yaml:"memory_used_percent,omitempty"`
}

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	Source  string           `json:"source" binding:"required"`
	Config  string           `json:"config,omitempty"`
	Options *AnalysisOptions `json:"options,omitempty"`
}

// BatchAnalyzeRequest is the body of POST /analyze/batch.
type BatchAnalyzeRequest struct {
	Sources     []string         `json:"sources" binding:"required,min=1"`
	Config      string           `json:"config,omitempty"`
	Concurrency int              `json:"concurrency,omitempty"`
	Options     *AnalysisOptions `json:"options,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}
