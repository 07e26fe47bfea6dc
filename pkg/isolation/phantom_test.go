package isolation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taggedRow struct {
	ID       int64
	TenantID int64
}

func (r taggedRow) TenantRef() int64 { return r.TenantID }

func TestFilterPhantomsDropsForeignRows(t *testing.T) {
	rec := NewRecorder(nil, nil, nil)

	rows := []taggedRow{
		{ID: 1, TenantID: 5},
		{ID: 2, TenantID: 6}, // leaked
		{ID: 3, TenantID: 5},
	}

	filtered := FilterPhantoms(context.Background(), rec, "case_notes", 5, rows)
	require.Len(t, filtered, 2)
	assert.Equal(t, int64(1), filtered[0].ID)
	assert.Equal(t, int64(3), filtered[1].ID)

	total, tenants := rec.Snapshot()
	assert.Equal(t, int64(1), total)
	assert.Equal(t, []int64{5}, tenants)
}

func TestFilterPhantomsCleanPassthrough(t *testing.T) {
	rec := NewRecorder(nil, nil, nil)

	rows := []taggedRow{{ID: 1, TenantID: 5}, {ID: 2, TenantID: 5}}
	filtered := FilterPhantoms(context.Background(), rec, "shifts", 5, rows)
	assert.Len(t, filtered, 2)

	total, _ := rec.Snapshot()
	assert.Zero(t, total)
}

func TestFilterPhantomsNilRecorder(t *testing.T) {
	rows := []taggedRow{{ID: 1, TenantID: 6}}
	filtered := FilterPhantoms(context.Background(), nil, "shifts", 5, rows)
	assert.Empty(t, filtered)
}

// Snapshot resets the window so each audit reports only its own interval.
func TestRecorderSnapshotResets(t *testing.T) {
	rec := NewRecorder(nil, nil, nil)
	ctx := context.Background()

	rec.Record(ctx, "case_notes", 5, 6)
	rec.Record(ctx, "case_notes", 5, 6)
	rec.Record(ctx, "shifts", 7, 5)

	total, tenants := rec.Snapshot()
	assert.Equal(t, int64(3), total)
	assert.ElementsMatch(t, []int64{5, 7}, tenants)

	total, tenants = rec.Snapshot()
	assert.Zero(t, total)
	assert.Empty(t, tenants)
}

func TestRecorderFeedsBreaker(t *testing.T) {
	breaker := NewBreaker(nil, 2, time.Minute, nil, nil)
	rec := NewRecorder(nil, nil, breaker)
	ctx := context.Background()

	rec.Record(ctx, "case_notes", 5, 6)
	assert.NoError(t, breaker.Allow(ctx, 5))

	rec.Record(ctx, "case_notes", 5, 6)
	assert.ErrorIs(t, breaker.Allow(ctx, 5), ErrWritesHalted)
}
