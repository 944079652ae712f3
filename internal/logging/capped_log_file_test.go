package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCappedLogFileTruncatesAtCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arcade.log")
	w, err := openCappedLogFile(path, 1)
	require.NoError(t, err)
	defer w.Close()

	chunk := bytes.Repeat([]byte("x"), 400*1024)
	for i := 0; i < 4; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.LessOrEqual(t, info.Size(), int64(1024*1024))
	// the most recent write survives the truncation
	require.Equal(t, int64(len(chunk)), info.Size())
}

func TestCappedLogFileResumesSizeAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arcade.log")
	w, err := openCappedLogFile(path, 1)
	require.NoError(t, err)
	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w, err = openCappedLogFile(path, 1)
	require.NoError(t, err)
	defer w.Close()
	require.Equal(t, int64(len("first\n")), w.written)

	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "first\nsecond\n", string(b))
}
