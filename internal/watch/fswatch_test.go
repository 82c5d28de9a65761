package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/svcbuilder/internal/config"
)

func TestFSWatcher_DeliversFilteredChanges(t *testing.T) {
	root := t.TempDir()
	backend := filepath.Join(root, "src", "backend")
	require.NoError(t, os.MkdirAll(backend, 0o755))

	w, err := NewFSWatcher(root, config.WatchSettings{
		Paths:    []string{"src/backend/**/*.ts"},
		Ignore:   []string{"src/**/*.test.ts"},
		Debounce: "30ms",
		MaxDelay: "500ms",
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(t.Context()))
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, os.WriteFile(filepath.Join(backend, "main.test.ts"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(backend, "notes.md"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(backend, "main.ts"), []byte("x"), 0o600))

	select {
	case set := <-w.Changes():
		assert.Equal(t, []string{"src/backend/main.ts"}, set.Paths)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change set")
	}
}

func TestFSWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	backend := filepath.Join(root, "src", "backend")
	require.NoError(t, os.MkdirAll(backend, 0o755))

	w, err := NewFSWatcher(root, config.WatchSettings{
		Paths:    []string{"src/backend/**/*.ts"},
		Debounce: "30ms",
		MaxDelay: "500ms",
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(t.Context()))
	t.Cleanup(func() { _ = w.Close() })

	nested := filepath.Join(backend, "routes")
	require.NoError(t, os.Mkdir(nested, 0o755))
	// give the watcher time to pick up the new directory
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(nested, "users.ts"), []byte("x"), 0o600))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case set := <-w.Changes():
			if assert.ObjectsAreEqual([]string{"src/backend/routes/users.ts"}, set.Paths) {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for nested change")
		}
	}
}

func TestFSWatcher_StartAfterCloseFails(t *testing.T) {
	w, err := NewFSWatcher(t.TempDir(), config.WatchSettings{Paths: []string{"src/**/*.ts"}, Debounce: "30ms", MaxDelay: "500ms"})
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Start(t.Context()), ErrWatcherClosed)
	assert.Nil(t, w.watcher)
}
