package backend

import (
	"context"
	"errors"

	"github.com/evora/mediagen-back/internal/domain"
)

var ErrUnavailable = errors.New("generation backend not configured")

type OperationState string

const (
	StateRunning   OperationState = "running"
	StateSucceeded OperationState = "succeeded"
	StateFailed    OperationState = "failed"
)

// PollResult is one observation of a long-running generation operation.
// ErrorMessage carries the backend's diagnostic text untouched; downstream
// code must never replace it with a synthesized message.
type PollResult struct {
	State        OperationState
	ResultRefs   []string
	ErrorMessage string
}

// Client is the three-state polling contract the orchestrator depends on.
// Submit dispatches one generation and returns an opaque operation handle;
// Poll observes that operation; Fetch downloads a produced asset by the
// reference the operation reported.
type Client interface {
	Submit(ctx context.Context, request domain.ValidatedRequest) (string, error)
	Poll(ctx context.Context, operationHandle string) (PollResult, error)
	Fetch(ctx context.Context, resultRef string) ([]byte, error)
}
