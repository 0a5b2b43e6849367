package milestone

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/cooper/internal/models"
	"github.com/mmynk/cooper/internal/storage/sqlite"
)

type fakeReleaser struct {
	mu          sync.Mutex
	calls       []string
	err         error
	delay       time.Duration
	inFlight    int
	maxInFlight int
}

func (f *fakeReleaser) ReleaseIntent(ctx context.Context, intentID string) error {
	f.mu.Lock()
	f.calls = append(f.calls, intentID)
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeReleaser) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newMilestone(t *testing.T, store *sqlite.SQLiteStore, intentID string) *models.Milestone {
	t.Helper()
	ctx := context.Background()

	admin := models.NewUser(intentID+"@example.com", "Admin", "hash")
	require.NoError(t, store.CreateUser(ctx, admin))
	event := &models.Event{Title: "Trip", AdminUserID: admin.ID}
	require.NoError(t, store.CreateEvent(ctx, event))
	category := &models.Category{EventID: event.ID, Name: "Food"}
	require.NoError(t, store.CreateCategory(ctx, category))

	expense := &models.Expense{
		EventID:         event.ID,
		CategoryID:      category.ID,
		CreatedBy:       admin.ID,
		Amount:          decimal.NewFromInt(40),
		PaymentIntentID: intentID,
	}
	m := &models.Milestone{}
	require.NoError(t, store.CreateExpense(ctx, expense, m))
	return m
}

func newStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "cooper.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestTryRelease(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		billUploaded bool
		approved     bool
	}{
		{"nothing set", false, false},
		{"bill only", true, false},
		{"approval only", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			m := newMilestone(t, store, "pi_missing")
			if tt.billUploaded {
				require.NoError(t, store.MarkBillUploaded(ctx, m.ID))
			}
			if tt.approved {
				require.NoError(t, store.MarkApproved(ctx, m.ID))
			}

			releaser := &fakeReleaser{}
			released, err := NewEngine(store, releaser).TryRelease(ctx, m.ID)
			require.NoError(t, err)
			assert.False(t, released)
			assert.Zero(t, releaser.count())
		})
	}

	t.Run("releases once", func(t *testing.T) {
		store := newStore(t)
		m := newMilestone(t, store, "pi_once")
		require.NoError(t, store.MarkBillUploaded(ctx, m.ID))
		require.NoError(t, store.MarkApproved(ctx, m.ID))

		releaser := &fakeReleaser{}
		engine := NewEngine(store, releaser)

		released, err := engine.TryRelease(ctx, m.ID)
		require.NoError(t, err)
		assert.True(t, released)

		released, err = engine.TryRelease(ctx, m.ID)
		require.NoError(t, err)
		assert.False(t, released)

		assert.Equal(t, []string{"pi_once"}, releaser.calls)
		got, err := store.GetMilestone(ctx, m.ID)
		require.NoError(t, err)
		assert.True(t, got.Released)
		assert.Equal(t, models.MilestoneReleased, got.State())
	})

	t.Run("provider failure leaves milestone unreleased", func(t *testing.T) {
		store := newStore(t)
		m := newMilestone(t, store, "pi_fail")
		require.NoError(t, store.MarkBillUploaded(ctx, m.ID))
		require.NoError(t, store.MarkApproved(ctx, m.ID))

		releaser := &fakeReleaser{err: errors.New("provider down")}
		engine := NewEngine(store, releaser)

		released, err := engine.TryRelease(ctx, m.ID)
		require.Error(t, err)
		assert.False(t, released)

		got, err := store.GetMilestone(ctx, m.ID)
		require.NoError(t, err)
		assert.False(t, got.Released)
		assert.Zero(t, got.ClaimedAt, "failed attempt must drop its claim")

		releaser.err = nil
		released, err = engine.TryRelease(ctx, m.ID)
		require.NoError(t, err)
		assert.True(t, released)
		assert.Equal(t, 2, releaser.count())
	})

	t.Run("unknown milestone", func(t *testing.T) {
		store := newStore(t)
		_, err := NewEngine(store, &fakeReleaser{}).TryRelease(ctx, "missing")
		require.Error(t, err)
	})
}

func TestTryReleaseConcurrent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	m := newMilestone(t, store, "pi_race")
	require.NoError(t, store.MarkBillUploaded(ctx, m.ID))
	require.NoError(t, store.MarkApproved(ctx, m.ID))

	releaser := &fakeReleaser{delay: 20 * time.Millisecond}
	engine := NewEngine(store, releaser)

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			released, err := engine.TryRelease(ctx, m.ID)
			assert.NoError(t, err)
			if released {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.Equal(t, 1, releaser.count())
}

func TestStaleClaimIsRetaken(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	m := newMilestone(t, store, "pi_stale")
	require.NoError(t, store.MarkBillUploaded(ctx, m.ID))
	require.NoError(t, store.MarkApproved(ctx, m.ID))

	// A crashed attempt left a claim behind.
	start := time.Unix(1_700_000_000, 0)
	claimed, err := store.ClaimRelease(ctx, m.ID, start.Unix(), start.Unix()-300)
	require.NoError(t, err)
	require.True(t, claimed)

	releaser := &fakeReleaser{}
	clock := start.Add(time.Minute)
	engine := NewEngine(store, releaser, WithLease(5*time.Minute), WithClock(func() time.Time { return clock }))

	released, err := engine.TryRelease(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, released, "fresh claim blocks")

	clock = start.Add(6 * time.Minute)
	released, err = engine.TryRelease(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, released)
	assert.Equal(t, 1, releaser.count())
}

func TestReleaseCallEndsBeforeLease(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	m := newMilestone(t, store, "pi_slow")
	require.NoError(t, store.MarkBillUploaded(ctx, m.ID))
	require.NoError(t, store.MarkApproved(ctx, m.ID))

	// The provider hangs far longer than the lease.
	releaser := &fakeReleaser{delay: 3 * time.Second}
	engine := NewEngine(store, releaser, WithLease(time.Second))

	first := make(chan error, 1)
	go func() {
		_, err := engine.TryRelease(ctx, m.ID)
		first <- err
	}()

	// Start a second attempt once the first claim's lease has run out.
	time.Sleep(2100 * time.Millisecond)
	released, err := engine.TryRelease(ctx, m.ID)
	assert.False(t, released)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case err := <-first:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("first attempt still in flight after its lease")
	}

	releaser.mu.Lock()
	defer releaser.mu.Unlock()
	assert.Equal(t, 1, releaser.maxInFlight, "provider calls overlapped")
	assert.Len(t, releaser.calls, 2)

	got, err := store.GetMilestone(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, got.Released)
	assert.Zero(t, got.ClaimedAt)
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	ready := newMilestone(t, store, "pi_ready")
	require.NoError(t, store.MarkBillUploaded(ctx, ready.ID))
	require.NoError(t, store.MarkApproved(ctx, ready.ID))
	newMilestone(t, store, "pi_waiting")

	releaser := &fakeReleaser{}
	released, err := NewEngine(store, releaser).Sweep(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, released)
	assert.Equal(t, []string{"pi_ready"}, releaser.calls)

	failing := &fakeReleaser{err: errors.New("boom")}
	again := newMilestone(t, store, "pi_again")
	require.NoError(t, store.MarkBillUploaded(ctx, again.ID))
	require.NoError(t, store.MarkApproved(ctx, again.ID))

	released, err = NewEngine(store, failing).Sweep(ctx, 10)
	require.Error(t, err)
	assert.Zero(t, released)
}
