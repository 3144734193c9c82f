package store

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := logrus.New()
	s, err := Open(filepath.Join(t.TempDir(), "bridge.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var testCreds = Credentials{
	SSIDPrim: "Home",
	PwPrim:   "secret1",
	SSIDSec:  "Office",
	PwSec:    "secret2",
}

func TestStore_SaveAndLoad(t *testing.T) {
	logger := logrus.New()
	path := filepath.Join(t.TempDir(), "bridge.db")

	s, err := Open(path, logger)
	require.NoError(t, err)
	require.NoError(t, s.SetCredentials(testCreds))
	require.NoError(t, s.Close())

	// Reopen, simulating a device restart.
	s2, err := Open(path, logger)
	require.NoError(t, err)
	defer s2.Close()

	creds, valid, err := s2.Load()
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, testCreds, creds)

	got, available := s2.Credentials()
	assert.True(t, available)
	assert.Equal(t, testCreds, got)
}

func TestStore_LoadEmpty(t *testing.T) {
	s := newTestStore(t)

	creds, valid, err := s.Load()
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Equal(t, Credentials{}, creds)

	_, available := s.Credentials()
	assert.False(t, available)
}

func TestStore_LoadIncompleteRecord(t *testing.T) {
	// A valid flag with an empty field is treated as no credentials.
	s := newTestStore(t)
	require.NoError(t, s.SetCredentials(Credentials{SSIDPrim: "Home", PwPrim: "pw"}))

	_, valid, err := s.Load()
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestStore_EraseIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetCredentials(testCreds))

	for i := 0; i < 2; i++ {
		s.ClearCredentials()
		require.NoError(t, s.Erase())

		creds, available := s.Credentials()
		assert.False(t, available)
		assert.Equal(t, Credentials{}, creds)

		_, valid, err := s.Load()
		require.NoError(t, err)
		assert.False(t, valid)
	}
}

func TestStore_WipeRecreatesSchema(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetCredentials(testCreds))

	require.NoError(t, s.Wipe())

	_, valid, err := s.Load()
	require.NoError(t, err)
	assert.False(t, valid)

	// The store is usable again after a wipe.
	require.NoError(t, s.SetCredentials(testCreds))
	creds, valid, err := s.Load()
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, testCreds, creds)
}

func TestStore_StatusChangedSignal(t *testing.T) {
	s := newTestStore(t)
	assert.False(t, s.StatusChanged())

	require.NoError(t, s.SetCredentials(testCreds))
	assert.True(t, s.StatusChanged())

	s.ClearStatusChanged()
	assert.False(t, s.StatusChanged())

	s.SetStatusChanged()
	assert.True(t, s.StatusChanged())
}

func TestStore_ConcurrentWriteDuringRead(t *testing.T) {
	// Reads must observe either the pre-write or post-write credentials,
	// never a mix of the two.
	s := newTestStore(t)

	before := testCreds
	after := Credentials{
		SSIDPrim: "NewHome",
		PwPrim:   "new1",
		SSIDSec:  "NewOffice",
		PwSec:    "new2",
	}
	require.NoError(t, s.SetCredentials(before))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = s.SetCredentials(after)
			_ = s.SetCredentials(before)
		}
	}()

	for i := 0; i < 1000; i++ {
		got, _ := s.Credentials()
		if got != before && got != after {
			t.Fatalf("torn read: %+v", got)
		}
	}
	<-done
}
