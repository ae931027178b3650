package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryPutGet(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Get("t1")
	require.False(t, ok, "empty registry should miss")

	r.Put("t1", "claude", "sess-abc")
	entry, ok := r.Get("t1")
	require.True(t, ok)
	require.Equal(t, Entry{Backend: "claude", SessionID: "sess-abc"}, entry)
}

func TestRegistryIgnoresEmptyKeys(t *testing.T) {
	r := NewRegistry()
	r.Put("", "codex", "sess")
	r.Put("t1", "codex", "")
	require.Zero(t, r.Len())
}

func TestRegistryValidateBackendMismatch(t *testing.T) {
	r := NewRegistry()
	r.Put("t1", "claude", "sess-abc")

	require.NoError(t, r.Validate("claude", "sess-abc"))

	err := r.Validate("codex", "sess-abc")
	require.Error(t, err)

	var mismatch *BackendMismatchError
	require.True(t, errors.As(err, &mismatch))
	require.Equal(t, "claude", mismatch.Want)
	require.Equal(t, "codex", mismatch.Got)
}

func TestRegistryValidateUnknownSessionPasses(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Validate("codex", "never-seen"))
	require.NoError(t, r.Validate("codex", ""))
}

func TestRegistryConcurrentWriters(t *testing.T) {
	r := NewRegistry()

	const writers = 20
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("task-%d", n)
			r.Put(id, "codex", fmt.Sprintf("sess-%d", n))
			if _, ok := r.Get(id); !ok {
				t.Errorf("task %s missing after Put", id)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, writers, r.Len())
}
