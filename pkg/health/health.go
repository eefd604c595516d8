package health

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

type Status string

const (
	StatusOK        Status = "ok"
	StatusUnhealthy Status = "unhealthy"
)

var ErrDraining = errors.New("server is draining")

type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

type Health struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type CheckerRegistry struct {
	checkers []Checker
}

func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{
		checkers: make([]Checker, 0),
	}
}

func (r *CheckerRegistry) Register(checker Checker) {
	r.checkers = append(r.checkers, checker)
}

func (r *CheckerRegistry) Check(ctx context.Context) Health {
	results := make(map[string]CheckResult)
	overall := StatusOK

	for _, checker := range r.checkers {
		result := CheckResult{
			Status:    StatusOK,
			Timestamp: time.Now(),
		}

		if err := checker.Check(ctx); err != nil {
			result.Status = StatusUnhealthy
			result.Message = err.Error()
			overall = StatusUnhealthy
		}

		results[checker.Name()] = result
	}

	return Health{
		Status:    overall,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

// DrainChecker fails once the server has started shutting down so load
// balancers stop routing new streams to it.
type DrainChecker struct {
	draining atomic.Bool
}

func NewDrainChecker() *DrainChecker {
	return &DrainChecker{}
}

func (c *DrainChecker) Name() string {
	return "draining"
}

func (c *DrainChecker) SetDraining() {
	c.draining.Store(true)
}

func (c *DrainChecker) Draining() bool {
	return c.draining.Load()
}

func (c *DrainChecker) Check(ctx context.Context) error {
	if c.draining.Load() {
		return ErrDraining
	}
	return nil
}
