package licensing

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStoreFirstRunCreatesFreeState(t *testing.T) {
	disk, err := OpenStateStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer disk.Close()

	state, err := disk.Load()
	require.NoError(t, err)
	assert.False(t, state.IsPro)
	assert.Equal(t, time.Now().Format("2006-01-02"), state.LastResetDate)
}

func TestStateStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	disk, err := OpenStateStore(path)
	require.NoError(t, err)

	verified := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, disk.Save(&State{
		IsPro:            true,
		UserEmail:        "a@x.com",
		LicenseKey:       "key-1",
		LastVerifiedAt:   &verified,
		DictationSeconds: 42,
		LastResetDate:    "2026-03-01",
	}))
	require.NoError(t, disk.Close())

	// Reopen as a fresh process would.
	disk, err = OpenStateStore(path)
	require.NoError(t, err)
	defer disk.Close()

	state, err := disk.Load()
	require.NoError(t, err)
	assert.True(t, state.IsPro)
	assert.Equal(t, "a@x.com", state.UserEmail)
	assert.Equal(t, "key-1", state.LicenseKey)
	assert.Equal(t, 42, state.DictationSeconds)
	require.NotNil(t, state.LastVerifiedAt)
	assert.True(t, state.LastVerifiedAt.Equal(verified))
}

func TestValidatorPersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store := newFakeStore()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	expires := clock.now.AddDate(0, 1, 0)
	store.records["a@x.com"] = proRecord("a@x.com", &expires)

	disk, err := OpenStateStore(path)
	require.NoError(t, err)
	v, err := NewValidator(store, disk, Options{Now: clock.Now})
	require.NoError(t, err)

	valid, err := v.ValidateLicense(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.True(t, valid)
	v.RecordDictationSeconds(30)
	require.NoError(t, disk.Close())

	// Restart: the validator answers from disk with no network call.
	disk, err = OpenStateStore(path)
	require.NoError(t, err)
	defer disk.Close()
	restarted, err := NewValidator(newFakeStore(), disk, Options{Now: clock.Now})
	require.NoError(t, err)

	assert.True(t, restarted.IsLicenseValid())
	assert.Equal(t, 30, restarted.Usage().DictationSeconds)
}
