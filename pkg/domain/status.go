package domain

import (
	"sort"
	"sync"
	"time"
)

// JobOutcome is the last observed result of one job slot.
type JobOutcome struct {
	Job        string
	Success    bool
	Detail     string
	FinishedAt time.Time
}

// StatusBoard keeps the most recent outcome per job slot in memory for the
// operational status endpoint. It is safe for concurrent use.
type StatusBoard struct {
	mu       sync.Mutex
	outcomes map[string]JobOutcome
}

func NewStatusBoard() *StatusBoard {
	return &StatusBoard{
		outcomes: make(map[string]JobOutcome),
	}
}

func (b *StatusBoard) Record(outcome JobOutcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.outcomes[outcome.Job] = outcome
}

func (b *StatusBoard) Snapshot() []JobOutcome {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]JobOutcome, 0, len(b.outcomes))
	for _, outcome := range b.outcomes {
		result = append(result, outcome)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Job < result[j].Job
	})

	return result
}
