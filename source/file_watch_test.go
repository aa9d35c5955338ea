package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRepositoryWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("network-name: Before\n"), 0o600))

	repo := &FileRepository{Name: "file", Path: path}
	require.NoError(t, repo.Refresh())

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan error, 16)
	done := make(chan error, 1)
	go func() {
		done <- repo.Watch(ctx, func(err error) { changes <- err })
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("network-name: After\n"), 0o600))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-changes:
		case <-deadline:
			t.Fatal("watch did not pick up the change")
		}
		if v, _ := repo.GetData("network-name"); v == "After" {
			break
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
