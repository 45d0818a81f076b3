package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hasnat/kafka-connect-jdbc/pkg/config"
	"github.com/hasnat/kafka-connect-jdbc/pkg/connector/registry"
	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
	"github.com/hasnat/kafka-connect-jdbc/pkg/logger"
)

// Runner runs sink tasks concurrently.
type Runner struct {
	tasks  []*SinkTask
	logger *zap.Logger
}

// NewRunner creates a runner for tasks.
func NewRunner(tasks ...*SinkTask) *Runner {
	return &Runner{
		tasks:  tasks,
		logger: logger.With(zap.String("component", "runner")),
	}
}

// BuildTasks creates cfg.Tasks tasks, each with its own source and
// destination from reg. Sources of one configuration share a consumer
// group, so partitions are spread over the tasks.
func BuildTasks(cfg *config.Config, reg *registry.Registry) ([]*SinkTask, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := cfg.Tasks
	if n <= 0 {
		n = 1
	}

	tasks := make([]*SinkTask, 0, n)
	for i := 0; i < n; i++ {
		source, err := reg.CreateSource(cfg.Source.Type, cfg)
		if err != nil {
			return nil, err
		}
		destination, err := reg.CreateDestination(cfg.Sink.Type, cfg)
		if err != nil {
			return nil, err
		}
		log := logger.With(zap.String("connector", cfg.Name), zap.Int("task", i))
		tasks = append(tasks, NewSinkTask(source, destination, log))
	}
	return tasks, nil
}

// Tasks returns the tasks the runner manages.
func (r *Runner) Tasks() []*SinkTask {
	return r.tasks
}

// Run starts every task and waits for all of them. The first task error
// cancels the others and is returned.
func (r *Runner) Run(ctx context.Context) error {
	if len(r.tasks) == 0 {
		return errors.New(errors.ErrorTypeConfig, "no tasks to run")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, task := range r.tasks {
		g.Go(func() error {
			if err := task.Run(gctx); err != nil {
				return errors.Wrap(err, errors.TypeOf(err), fmt.Sprintf("task %s failed", task.ID()))
			}
			return nil
		})
	}

	r.logger.Info("runner started", zap.Int("tasks", len(r.tasks)))
	err := g.Wait()
	if err != nil {
		r.logger.Error("runner stopped", zap.Error(err))
		return err
	}
	r.logger.Info("runner stopped")
	return nil
}
