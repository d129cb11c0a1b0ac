package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/arbor"
)

func newTestManager(t *testing.T) interfaces.StorageManager {
	t.Helper()
	mgr, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "badger"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func TestKVStorageRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	kv := mgr.KeyValueStorage()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "ANTHROPIC_API_KEY", "sk-ant-test"))

	got, err := kv.Get(ctx, "anthropic_api_key")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test", got)

	// Mixed case and padding resolve to the same entry
	got, err = kv.Get(ctx, "  Anthropic_API_Key ")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test", got)
}

func TestKVStorageGetMissing(t *testing.T) {
	mgr := newTestManager(t)

	_, err := mgr.KeyValueStorage().Get(context.Background(), "never_set")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestKVStorageDelete(t *testing.T) {
	mgr := newTestManager(t)
	kv := mgr.KeyValueStorage()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "gemini_api_key", "gm-test"))
	require.NoError(t, kv.Delete(ctx, "GEMINI_API_KEY"))

	_, err := kv.Get(ctx, "gemini_api_key")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	assert.ErrorIs(t, kv.Delete(ctx, "gemini_api_key"), interfaces.ErrKeyNotFound)
}

func TestKVStorageSetPreservesCreatedAt(t *testing.T) {
	mgr := newTestManager(t)
	kv := mgr.KeyValueStorage()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "model", "claude-sonnet"))

	pairs, err := kv.List(ctx)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	created := pairs[0].CreatedAt

	require.NoError(t, kv.Set(ctx, "model", "claude-opus"))

	pairs, err = kv.List(ctx)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "claude-opus", pairs[0].Value)
	assert.True(t, pairs[0].CreatedAt.Equal(created), "update must not reset CreatedAt")
}

func TestKVStorageList(t *testing.T) {
	mgr := newTestManager(t)
	kv := mgr.KeyValueStorage()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "alpha", "1"))
	require.NoError(t, kv.Set(ctx, "beta", "2"))
	require.NoError(t, kv.Set(ctx, "gamma", "3"))

	pairs, err := kv.List(ctx)
	require.NoError(t, err)
	require.Len(t, pairs, 3)

	byKey := make(map[string]string, len(pairs))
	for _, p := range pairs {
		byKey[p.Key] = p.Value
	}
	assert.Equal(t, map[string]string{"alpha": "1", "beta": "2", "gamma": "3"}, byKey)
}

func TestLoadEnvFile(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	envPath := filepath.Join(t.TempDir(), ".env")
	content := `# API credentials
ANTHROPIC_API_KEY=sk-ant-plain
GEMINI_API_KEY="gm-quoted"
SINGLE='sq-value'

EMPTY_VALUE=
not a key value line
=no_key
`
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o644))

	require.NoError(t, mgr.LoadEnvFile(ctx, envPath))

	kv := mgr.KeyValueStorage()

	got, err := kv.Get(ctx, "anthropic_api_key")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-plain", got)

	got, err = kv.Get(ctx, "gemini_api_key")
	require.NoError(t, err)
	assert.Equal(t, "gm-quoted", got, "double quotes stripped")

	got, err = kv.Get(ctx, "single")
	require.NoError(t, err)
	assert.Equal(t, "sq-value", got, "single quotes stripped")

	_, err = kv.Get(ctx, "empty_value")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound, "empty values are skipped")
}

func TestLoadEnvFileMissingIsNotAnError(t *testing.T) {
	mgr := newTestManager(t)

	err := mgr.LoadEnvFile(context.Background(), filepath.Join(t.TempDir(), "nope.env"))
	assert.NoError(t, err)
}

func TestManagerResetOnStartup(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "badger")
	ctx := context.Background()

	mgr, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: dir})
	require.NoError(t, err)
	require.NoError(t, mgr.KeyValueStorage().Set(ctx, "persisted", "yes"))
	require.NoError(t, mgr.Close())

	// Plain reopen keeps the data
	mgr, err = NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: dir})
	require.NoError(t, err)
	got, err := mgr.KeyValueStorage().Get(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, "yes", got)
	require.NoError(t, mgr.Close())

	// reset_on_startup wipes it
	mgr, err = NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: dir, ResetOnStartup: true})
	require.NoError(t, err)
	defer mgr.Close()
	_, err = mgr.KeyValueStorage().Get(ctx, "persisted")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestManagerMaintain(t *testing.T) {
	mgr := newTestManager(t)

	// Fresh store has nothing to reclaim; the pass is a clean no-op
	assert.NoError(t, mgr.Maintain(context.Background()))
}

func TestManagerMaintainCancelled(t *testing.T) {
	mgr := newTestManager(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, mgr.Maintain(ctx), context.Canceled)
}
