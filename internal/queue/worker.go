// Package queue runs the task adapter over a stream of newline-delimited
// JSON deliveries. Writing a response line acknowledges the delivery.
package queue

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	apperrors "github.com/anime-shed/image-quality-engine/internal/errors"
	"github.com/anime-shed/image-quality-engine/internal/logger"
	"github.com/anime-shed/image-quality-engine/internal/task"
	"github.com/anime-shed/image-quality-engine/pkg/models"
)

// maxLineSize bounds one delivery. Tasks carry references, never pixels.
const maxLineSize = 4 * 1024 * 1024

// Handler processes one task. *task.Adapter satisfies it.
type Handler interface {
	Handle(ctx context.Context, t models.Task) models.TaskResponse
}

// Stats counts what a Worker has processed.
type Stats struct {
	Received  int
	Completed int
	Failed    int
	Malformed int
}

// Worker consumes deliveries one at a time, in order.
type Worker struct {
	handler Handler
	in      io.Reader
	out     io.Writer

	mu    sync.Mutex
	stats Stats
}

func NewWorker(h Handler, in io.Reader, out io.Writer) *Worker {
	return &Worker{handler: h, in: in, out: out}
}

// Run processes deliveries until the input ends or ctx is cancelled.
// Blank lines are skipped. Only read and write failures stop the worker.
func (w *Worker) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(w.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	enc := json.NewEncoder(w.out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		resp := w.process(ctx, line)
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response for task %s: %w", resp.TaskID, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read deliveries: %w", err)
	}

	stats := w.Stats()
	logger.WithFields(logrus.Fields{
		"received":  stats.Received,
		"completed": stats.Completed,
		"failed":    stats.Failed,
		"malformed": stats.Malformed,
	}).Info("Queue drained")
	return nil
}

func (w *Worker) process(ctx context.Context, line []byte) models.TaskResponse {
	var t models.Task
	if err := json.Unmarshal(line, &t); err != nil {
		w.record(func(s *Stats) { s.Received++; s.Malformed++; s.Failed++ })
		logger.WithError(err).Warn("Malformed task delivery")
		return task.Failure(peekTaskID(line), apperrors.NewValidationError("malformed task payload", err))
	}

	resp := w.handler.Handle(ctx, t)
	w.record(func(s *Stats) {
		s.Received++
		if resp.Status == models.TaskStatusCompleted {
			s.Completed++
		} else {
			s.Failed++
		}
	})
	return resp
}

func (w *Worker) record(update func(*Stats)) {
	w.mu.Lock()
	update(&w.stats)
	w.mu.Unlock()
}

func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// peekTaskID recovers the task_id of a payload that failed to decode as a
// Task, so the response can still be correlated.
func peekTaskID(line []byte) string {
	var probe struct {
		TaskID string `json:"task_id"`
	}
	if json.Unmarshal(line, &probe) != nil {
		return ""
	}
	return probe.TaskID
}
