package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/evora/mediagen-back/internal/domain"
	"github.com/evora/mediagen-back/internal/orchestrator"
	"github.com/evora/mediagen-back/internal/queue"
	"github.com/evora/mediagen-back/internal/results"
)

// Processor consumes admitted jobs and drives each one to its terminal
// state. The pool size bounds how many generation operations are in flight
// against the backend at once.
type Processor struct {
	consumer    queue.Consumer
	orch        *orchestrator.Orchestrator
	results     *results.Store
	concurrency int
	logger      zerolog.Logger
}

func NewProcessor(
	consumer queue.Consumer,
	orch *orchestrator.Orchestrator,
	resultStore *results.Store,
	concurrency int,
	logger zerolog.Logger,
) *Processor {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Processor{
		consumer:    consumer,
		orch:        orch,
		results:     resultStore,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Start runs the worker pool until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < p.concurrency; i++ {
		group.Go(func() error {
			p.consumeLoop(groupCtx)
			return nil
		})
	}
	_ = group.Wait()
}

func (p *Processor) consumeLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := p.consumer.Consume(ctx, p.processMessage)
		if err == nil || ctx.Err() != nil {
			return
		}
		p.logger.Error().Err(err).Msg("worker consume loop error")

		timer := time.NewTimer(2 * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// processMessage drives one Job to completion. It returns an error only for
// infrastructure faults worth a redelivery; a Job that reached a terminal
// state is final regardless of outcome.
func (p *Processor) processMessage(ctx context.Context, message domain.QueueMessage) error {
	// The creating process already tracks the Job; a worker in another
	// process reconstructs it from the message.
	if _, ok := p.orch.Get(message.JobID); !ok {
		p.orch.Restore(message)
	}

	job, runErr := p.orch.Run(ctx, message.JobID)
	if runErr != nil {
		if job.State == domain.JobStateFailed {
			p.logger.Warn().
				Str("job_id", job.ID).
				Str("kind", string(job.ErrorDetail.Kind)).
				Str("detail", job.ErrorDetail.Message).
				Msg("job reached failed state")
			return nil
		}
		return fmt.Errorf("run job %s: %w", message.JobID, runErr)
	}

	if _, err := p.results.Persist(ctx, job); err != nil {
		// Persisting is idempotent, so a redelivery retries safely without
		// re-running the generation.
		return fmt.Errorf("persist job %s: %w", job.ID, err)
	}

	p.logger.Info().
		Str("job_id", job.ID).
		Str("model", job.Request.ModelKey).
		Msg("job processed")
	return nil
}
