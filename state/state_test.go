package state

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// TestRecordSuccess_CreatesAndUpdates verifies success bookkeeping for a
// new and an existing source
func TestRecordSuccess_CreatesAndUpdates(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.RecordSuccess("NOS Nieuws", 30, 12, 18))
	st, err := store.GetSource("NOS Nieuws")
	require.NoError(t, err)

	assert.Equal(t, 30, st.Fetched)
	assert.Equal(t, 12, st.Added)
	assert.Equal(t, 18, st.Skipped)
	assert.Equal(t, 0, st.ErrorCount)
	require.NotNil(t, st.LastSuccessAt)
	assert.WithinDuration(t, time.Now(), *st.LastSuccessAt, 5*time.Second)
	firstID := st.SourceID

	require.NoError(t, store.RecordSuccess("NOS Nieuws", 30, 3, 27))
	st, err = store.GetSource("NOS Nieuws")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Added)
	assert.Equal(t, firstID, st.SourceID, "source identity is stable across runs")
}

// TestRecordFailure_IncrementsErrorStreak verifies consecutive failures
// count up and a success resets them
func TestRecordFailure_IncrementsErrorStreak(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.RecordFailure("Security.nl", errors.New("timeout")))
	require.NoError(t, store.RecordFailure("Security.nl", errors.New("refused")))

	st, err := store.GetSource("Security.nl")
	require.NoError(t, err)
	assert.Equal(t, 2, st.ErrorCount)
	require.NotNil(t, st.LastError)
	assert.Equal(t, "refused", *st.LastError)
	assert.Nil(t, st.LastSuccessAt)

	require.NoError(t, store.RecordSuccess("Security.nl", 10, 10, 0))
	st, err = store.GetSource("Security.nl")
	require.NoError(t, err)
	assert.Equal(t, 0, st.ErrorCount)
	assert.Nil(t, st.LastError)
}

// TestGetSource_NotFound verifies the sentinel error for unknown sources
func TestGetSource_NotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetSource("onbekend")

	assert.ErrorIs(t, err, ErrSourceNotFound)
}

// TestListSources verifies all recorded sources come back
func TestListSources(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.RecordSuccess("NOS Nieuws", 5, 5, 0))
	require.NoError(t, store.RecordFailure("Politie", errors.New("kapot")))

	states, err := store.ListSources()

	require.NoError(t, err)
	require.Len(t, states, 2)
	names := []string{states[0].Name, states[1].Name}
	assert.Contains(t, names, "NOS Nieuws")
	assert.Contains(t, names, "Politie")
}

// TestAnchor_Roundtrip verifies the police anchor persists at calendar-day
// granularity
func TestAnchor_Roundtrip(t *testing.T) {
	store := openTestStore(t)

	_, ok, err := store.Anchor()
	require.NoError(t, err)
	assert.False(t, ok, "fresh store has no anchor")

	want := time.Date(2025, 10, 31, 17, 45, 0, 0, time.UTC)
	require.NoError(t, store.UpdateAnchor(want))

	got, ok, err := store.Anchor()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC), got)
}

// TestAnchor_Overwrite verifies a newer anchor replaces the old one
func TestAnchor_Overwrite(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.UpdateAnchor(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, store.UpdateAnchor(time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)))

	got, ok, err := store.Anchor()

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC), got)
}

// TestOpen_CreatesSchemaOnce verifies reopening an existing database works
func TestOpen_CreatesSchemaOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.RecordSuccess("NOS Nieuws", 1, 1, 0))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	st, err := reopened.GetSource("NOS Nieuws")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Fetched)
}
