package orchestration

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/zoff-tech/go-clearing/pkg/resilience"
)

// Step is one stage of a sequential pipeline. Its output feeds the next
// step's input.
type Step struct {
	Name string
	Run  func(ctx context.Context, in any) (any, error)
}

// StepResult holds a completed step's output for diagnostics.
type StepResult struct {
	Name   string
	Output any
}

// PipelineResult is produced once per pipeline run. On failure Succeeded is
// nil and Partial retains every completed step's output; partial progress is
// never dropped.
type PipelineResult struct {
	Succeeded any
	Err       *resilience.AdapterError
	Partial   map[string]StepResult
}

// Engine sequences and parallelizes resilience-wrapped remote calls. It is
// parameterized by the executor, so every step and batch item goes through
// the breaker/retry/timeout policy of its adapter key.
type Engine struct {
	executor         *resilience.Executor
	batchConcurrency int
}

// NewEngine creates an engine. batchConcurrency caps parallel batch fan-out;
// zero means one goroutine per item.
func NewEngine(executor *resilience.Executor, batchConcurrency int) *Engine {
	return &Engine{executor: executor, batchConcurrency: batchConcurrency}
}

// Executor exposes the underlying executor for facade-level calls outside
// pipelines.
func (e *Engine) Executor() *resilience.Executor { return e.executor }

// RunPipeline executes steps in order under key's resilience policy,
// fail-fast. Step N's input is step N-1's completed output.
func (e *Engine) RunPipeline(ctx context.Context, key string, input any, steps []Step) PipelineResult {
	result := PipelineResult{Partial: make(map[string]StepResult, len(steps))}

	current := input
	for _, step := range steps {
		step := step
		out, err := resilience.Execute(ctx, e.executor, key, step.Name, func(ctx context.Context) (any, error) {
			return step.Run(ctx, current)
		})
		if err != nil {
			result.Err = resilience.Classify(err, step.Name, "")
			return result
		}
		result.Partial[step.Name] = StepResult{Name: step.Name, Output: out}
		current = out
	}

	result.Succeeded = current
	return result
}

// ItemResult is one batch item's outcome, at the item's submission position.
type ItemResult[R any] struct {
	Index int
	Value R
	Err   *resilience.AdapterError
}

// BatchResult aggregates a parallel batch. Results ordering matches input
// submission order regardless of completion order.
type BatchResult[R any] struct {
	Total          int
	SucceededCount int
	FailedCount    int
	Results        []ItemResult[R]
}

// RunBatch fans out one resilience-wrapped call per item, bounded by the
// engine's concurrency limit, and fans in preserving submission order. A
// single item's failure never aborts its siblings; caller cancellation
// propagates to all in-flight items through ctx.
func RunBatch[T, R any](ctx context.Context, e *Engine, key, operation string, items []T, fn func(ctx context.Context, item T) (R, error)) BatchResult[R] {
	result := BatchResult[R]{
		Total:   len(items),
		Results: make([]ItemResult[R], len(items)),
	}

	g, ctx := errgroup.WithContext(ctx)
	if e.batchConcurrency > 0 {
		g.SetLimit(e.batchConcurrency)
	}

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			value, err := resilience.Execute(ctx, e.executor, key, operation, func(ctx context.Context) (R, error) {
				return fn(ctx, item)
			})
			if err != nil {
				result.Results[i] = ItemResult[R]{Index: i, Err: resilience.Classify(err, operation, "")}
				return nil // isolate: sibling items keep running
			}
			result.Results[i] = ItemResult[R]{Index: i, Value: value}
			return nil
		})
	}
	g.Wait()

	for _, r := range result.Results {
		if r.Err != nil {
			result.FailedCount++
		} else {
			result.SucceededCount++
		}
	}
	return result
}
