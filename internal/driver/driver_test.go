package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/archive-harvester/internal/crawler"
)

type scriptedRounder struct {
	reports []crawler.RoundReport
	errs    []error
	calls   int
}

func (s *scriptedRounder) RunRound(context.Context) (crawler.RoundReport, error) {
	i := s.calls
	s.calls++
	if i >= len(s.reports) {
		return crawler.RoundReport{}, errors.New("unexpected extra round")
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.reports[i], err
}

type recordingSleeper struct {
	pauses []time.Duration
	err    error
}

func (r *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	r.pauses = append(r.pauses, d)
	return r.err
}

func round(id string, planned []int, ok, failed int, state crawler.CrawlState, done bool) crawler.RoundReport {
	return crawler.RoundReport{
		RoundID:   id,
		Phase:     crawler.PhaseRoundDone,
		Planned:   planned,
		Succeeded: ok,
		Failed:    failed,
		Done:      done,
		State:     state,
	}
}

func TestRunUntilComplete(t *testing.T) {
	t.Parallel()

	rounder := &scriptedRounder{reports: []crawler.RoundReport{
		round("r1", []int{1, 2}, 2, 0, crawler.CrawlState{LastID: 2, TotalCollected: 2, RoundCount: 1}, false),
		round("r2", []int{3, 4}, 1, 1, crawler.CrawlState{LastID: 4, TotalCollected: 4, RoundCount: 2}, true),
	}}
	sleeper := &recordingSleeper{}

	res, err := New(Config{Pause: 10 * time.Second}, rounder, sleeper, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Equal(t, 2, res.Rounds)
	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, crawler.CrawlState{LastID: 4, TotalCollected: 4, RoundCount: 2}, res.State)
	assert.Equal(t, []time.Duration{10 * time.Second}, sleeper.pauses)
}

func TestRunAlreadyComplete(t *testing.T) {
	t.Parallel()

	state := crawler.CrawlState{LastID: 10, TotalCollected: 10, RoundCount: 5}
	rounder := &scriptedRounder{reports: []crawler.RoundReport{round("r1", nil, 0, 0, state, true)}}
	sleeper := &recordingSleeper{}

	res, err := New(Config{Pause: time.Second}, rounder, sleeper, nil).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Zero(t, res.Rounds)
	assert.Equal(t, state, res.State)
	assert.Empty(t, sleeper.pauses)
}

func TestRunStopsOnPersistenceFailure(t *testing.T) {
	t.Parallel()

	before := crawler.CrawlState{LastID: 2, TotalCollected: 2, RoundCount: 1}
	persistErr := &crawler.PersistenceError{Phase: crawler.PhasePersisting, Op: "append records", Err: errors.New("disk full")}
	failed := crawler.RoundReport{RoundID: "r2", Phase: crawler.PhasePersisting, Planned: []int{3, 4}, State: before}
	rounder := &scriptedRounder{
		reports: []crawler.RoundReport{round("r1", []int{1, 2}, 2, 0, before, false), failed},
		errs:    []error{nil, persistErr},
	}
	sleeper := &recordingSleeper{}

	res, err := New(Config{}, rounder, sleeper, nil).Run(context.Background())
	require.ErrorIs(t, err, persistErr)
	assert.Equal(t, crawler.KindPersistenceFailure, crawler.KindOf(err))
	assert.False(t, res.Complete)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, before, res.State, "no progress is assumed for the failed round")
	assert.Equal(t, 2, rounder.calls)
}

func TestRunHonorsMaxRounds(t *testing.T) {
	t.Parallel()

	rounder := &scriptedRounder{reports: []crawler.RoundReport{
		round("r1", []int{1}, 1, 0, crawler.CrawlState{LastID: 1, TotalCollected: 1, RoundCount: 1}, false),
		round("r2", []int{2}, 1, 0, crawler.CrawlState{LastID: 2, TotalCollected: 2, RoundCount: 2}, false),
	}}
	sleeper := &recordingSleeper{}

	res, err := New(Config{MaxRounds: 2}, rounder, sleeper, nil).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Complete)
	assert.Equal(t, 2, res.Rounds)
	assert.Len(t, sleeper.pauses, 1)
}

func TestRunInterruptedDuringPause(t *testing.T) {
	t.Parallel()

	rounder := &scriptedRounder{reports: []crawler.RoundReport{
		round("r1", []int{1}, 1, 0, crawler.CrawlState{LastID: 1, TotalCollected: 1, RoundCount: 1}, false),
	}}
	sleeper := &recordingSleeper{err: context.Canceled}

	res, err := New(Config{Pause: time.Minute}, rounder, sleeper, nil).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, res.Complete)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, 1, rounder.calls)
}
