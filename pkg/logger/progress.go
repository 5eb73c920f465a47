package logger

import (
	"sync"
	"time"
)

// ProgressTracker logs progress of multi-step batch operations, such as the
// cleaning pipeline running its rule passes over a large invoice table.
type ProgressTracker struct {
	logger    Logger
	operation string
	total     int
	current   int
	startTime time.Time
	mutex     sync.Mutex
}

// NewProgressTracker creates a tracker for an operation with a known number of steps
func NewProgressTracker(operation string, total int, log Logger) *ProgressTracker {
	if log == nil {
		log = GetGlobalLogger()
	}

	tracker := &ProgressTracker{
		logger:    log.WithComponent("progress"),
		operation: operation,
		total:     total,
		startTime: time.Now(),
	}

	tracker.logger.WithFields(Fields{
		"operation": operation,
		"total":     total,
	}).Info("Starting operation")

	return tracker
}

// Step marks one step as finished and logs it with elapsed time
func (p *ProgressTracker) Step(name string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.current++
	p.logger.WithFields(Fields{
		"operation": p.operation,
		"step":      name,
		"completed": p.current,
		"total":     p.total,
		"elapsed":   time.Since(p.startTime).String(),
	}).Info("Step completed")
}

// Complete logs the end of the operation
func (p *ProgressTracker) Complete() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.logger.WithFields(Fields{
		"operation": p.operation,
		"completed": p.current,
		"total":     p.total,
		"duration":  time.Since(p.startTime).String(),
	}).Info("Operation completed")
}
