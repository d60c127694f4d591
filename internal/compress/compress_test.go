package compress

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("the quick brown fox "), 500)
	for _, name := range []string{"plain.json", "packed.json.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, WriteFile(path, payload))

			got, err := ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, payload, got)

			info, err := os.Stat(path)
			require.NoError(t, err)
			if Compressed(name) {
				assert.Less(t, info.Size(), int64(len(payload)))
			} else {
				assert.Equal(t, int64(len(payload)), info.Size())
			}
		})
	}
}

func TestStreaming(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.zst")
	w, err := Create(path)
	require.NoError(t, err)
	_, err = io.WriteString(w, "hello ")
	require.NoError(t, err)
	_, err = io.WriteString(w, "world")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.zst"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
