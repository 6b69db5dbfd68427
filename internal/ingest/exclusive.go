package ingest

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/mico/crypto-sentiment-analysis/internal/domain"
)

// ErrRunInProgress is returned when a run is requested while another one is
// still active.
var ErrRunInProgress = errors.New("an ingestion run is already in progress")

type Runner interface {
	RunOnce(ctx context.Context) (domain.RunResult, error)
}

// ExclusiveRunner admits one run at a time across every caller sharing it,
// such as the scheduled job and the HTTP trigger. A caller arriving during a
// run gets ErrRunInProgress instead of waiting.
type ExclusiveRunner struct {
	inner   Runner
	running atomic.Bool
}

func NewExclusiveRunner(inner Runner) *ExclusiveRunner {
	return &ExclusiveRunner{inner: inner}
}

func (r *ExclusiveRunner) RunOnce(ctx context.Context) (domain.RunResult, error) {
	if !r.running.CompareAndSwap(false, true) {
		return domain.RunResult{}, ErrRunInProgress
	}
	defer r.running.Store(false)
	return r.inner.RunOnce(ctx)
}

// Running reports whether a run is in flight.
func (r *ExclusiveRunner) Running() bool {
	return r.running.Load()
}
