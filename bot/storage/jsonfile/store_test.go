package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/slrbot/bot/order"
)

func sampleState() order.State {
	at := time.Date(2025, 2, 3, 14, 5, 6, 789000000, time.UTC)
	return order.State{
		Counter: 2,
		Orders: []order.Order{
			{
				OrderNo:     "SLR-2025-0001",
				UserID:      101,
				DisplayName: "Jean Dupont",
				Handle:      "jdupont",
				Service:     "Logo design",
				Amount:      "150.50",
				Address:     "12 rue de Paris",
				CreatedAt:   at,
			},
			{
				OrderNo:     "SLR-2025-0002",
				UserID:      202,
				DisplayName: "Client",
				Service:     "WebDesign",
				Amount:      "399",
				Address:     "1 place Bellecour\nLyon",
				CreatedAt:   at.Add(time.Hour),
			},
		},
	}
}

func TestLoadMissingFileReturnsZeroState(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "orders.json"))
	st, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Counter)
	assert.Empty(t, st.Orders)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "nested", "orders.json"))
	want := sampleState()

	require.NoError(t, s.Save(ctx, want))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.Save(ctx, got))
	again, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "orders.json"))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(context.Background(), order.State{Counter: int64(i)}))
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "orders.json", entries[0].Name())
}

func TestSaveFailureKeepsPreviousDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.json")
	s := New(path)
	require.NoError(t, s.Save(context.Background(), sampleState()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, s.Save(ctx, order.State{Counter: 99}))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Counter)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"counter": 3, "orders": [`), 0o600))

	_, err := New(path).Load(context.Background())
	assert.ErrorIs(t, err, order.ErrCorruptState)
}

func TestLoadRejectsNegativeCounter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"counter": -1, "orders": []}`), 0o600))

	_, err := New(path).Load(context.Background())
	assert.ErrorIs(t, err, order.ErrCorruptState)
}

func TestLoadReadsLegacyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	legacy := `{
  "counter": 1,
  "orders": [
    {
      "orderNo": "SLR-2024-0001",
      "userId": 555,
      "username": "(sans username)",
      "name": "Client",
      "service": "Boost",
      "amount": "20",
      "address": "Marseille",
      "date": "2024-11-30T18:45:12.345Z"
    }
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	st, err := New(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, st.Orders, 1)
	o := st.Orders[0]
	assert.Equal(t, int64(1), st.Counter)
	assert.Equal(t, "SLR-2024-0001", o.OrderNo)
	assert.Equal(t, int64(555), o.UserID)
	assert.Empty(t, o.Handle)
	assert.Equal(t, time.Date(2024, 11, 30, 18, 45, 12, 345000000, time.UTC), o.CreatedAt)
}

func TestSaveWritesLegacyKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	require.NoError(t, New(path).Save(context.Background(), sampleState()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, key := range []string{`"counter": 2`, `"orderNo"`, `"userId": 101`, `"username": "@jdupont"`, `"username": "(sans username)"`, `"name"`, `"date"`} {
		assert.Contains(t, string(data), key)
	}
}
