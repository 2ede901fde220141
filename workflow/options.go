package workflow

import (
	"github.com/meshrun/meshrun/telemetry"
	"github.com/meshrun/meshrun/workflow/store"
)

// Option configures a Runner, following the teacher's functional-option
// shape (graph/options.go's Option func(*engineConfig) error) so callers
// can compose only the settings they need:
//
//	runner, err := workflow.NewRunner(wf,
//	    workflow.WithCheckpointStore(sqliteStore),
//	    workflow.WithMaxSupersteps(200),
//	    workflow.WithQueueDepth(2048),
//	)
type Option func(*runnerConfig) error

type runnerConfig struct {
	store            store.Store
	logger           telemetry.Logger
	metrics          telemetry.Metrics
	tracer           telemetry.Tracer
	maxSupersteps    int
	queueDepth       int
	checkpointEvery  int
	executorPolicies map[string]*RetryPolicy
	supervisor       SupervisorFunc
}

func defaultRunnerConfig() *runnerConfig {
	return &runnerConfig{
		logger:           telemetry.NoopLogger{},
		metrics:          telemetry.NoopMetrics{},
		tracer:           telemetry.NoopTracer{},
		maxSupersteps:    0, // unlimited; set WithMaxSupersteps to bound loops
		queueDepth:       1024,
		checkpointEvery:  1,
		executorPolicies: make(map[string]*RetryPolicy),
	}
}

// WithCheckpointStore persists superstep progress so a run can resume
// after a crash. Without one, checkpointing is a no-op.
func WithCheckpointStore(s store.Store) Option {
	return func(cfg *runnerConfig) error {
		cfg.store = s
		return nil
	}
}

// WithLogger attaches a telemetry.Logger.
func WithLogger(l telemetry.Logger) Option {
	return func(cfg *runnerConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithMetrics attaches a telemetry.Metrics.
func WithMetrics(m telemetry.Metrics) Option {
	return func(cfg *runnerConfig) error {
		cfg.metrics = m
		return nil
	}
}

// WithTracer attaches a telemetry.Tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(cfg *runnerConfig) error {
		cfg.tracer = t
		return nil
	}
}

// WithMaxSupersteps bounds the number of supersteps a run may execute
// before returning ErrMaxSuperstepsExceeded, guarding against workflows
// with a missing terminal condition. Zero (the default) means unlimited.
func WithMaxSupersteps(n int) Option {
	return func(cfg *runnerConfig) error {
		cfg.maxSupersteps = n
		return nil
	}
}

// WithQueueDepth sets the bounded capacity of the per-superstep message
// frontier. When full, message delivery blocks (backpressure) until the
// next superstep drains it.
func WithQueueDepth(n int) Option {
	return func(cfg *runnerConfig) error {
		cfg.queueDepth = n
		return nil
	}
}

// WithCheckpointEvery checkpoints after every N supersteps instead of
// every one (the default), trading replay granularity for throughput on
// checkpoint-store-bound workloads.
func WithCheckpointEvery(n int) Option {
	return func(cfg *runnerConfig) error {
		if n < 1 {
			n = 1
		}
		cfg.checkpointEvery = n
		return nil
	}
}

// WithExecutorPolicy attaches a RetryPolicy to a specific executor ID.
func WithExecutorPolicy(executorID string, policy *RetryPolicy) Option {
	return func(cfg *runnerConfig) error {
		if err := policy.Validate(); err != nil {
			return err
		}
		cfg.executorPolicies[executorID] = policy
		return nil
	}
}

// WithSupervisor installs a SupervisorFunc that can downgrade specific
// handler failures from fatal to recoverable.
func WithSupervisor(fn SupervisorFunc) Option {
	return func(cfg *runnerConfig) error {
		cfg.supervisor = fn
		return nil
	}
}
