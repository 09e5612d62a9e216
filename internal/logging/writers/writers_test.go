package writers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWriter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name       string
		output     string
		wantType   WriterType
		shouldFail bool
	}{
		{name: "empty string defaults to stdout", output: "", wantType: WriterTypeStdout},
		{name: "stdout", output: "stdout", wantType: WriterTypeStdout},
		{name: "stderr", output: "stderr", wantType: WriterTypeStderr},
		{name: "file path", output: filepath.Join(dir, "a.log"), wantType: WriterTypeFile},
		{name: "file protocol", output: "file://" + filepath.Join(dir, "b.log"), wantType: WriterTypeFile},
		{name: "nested directories", output: filepath.Join(dir, "x", "y", "c.log"), wantType: WriterTypeFile},
		{name: "unsupported format", output: "redis://localhost:6379", shouldFail: true},
		{name: "bare word", output: "syslog", shouldFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer, err := CreateWriter(tt.output)
			if tt.shouldFail {
				require.Error(t, err)
				require.Nil(t, writer)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, writer)
			assert.Equal(t, tt.wantType, ParseWriterType(tt.output))
			require.NoError(t, writer.Close())
		})
	}
}

func TestFileWriterAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.log")
	for _, line := range []string{"one\n", "two\n"} {
		w, err := CreateWriter(path)
		require.NoError(t, err)
		_, err = w.Write([]byte(line))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestStandardStreamsAreNotClosed(t *testing.T) {
	t.Parallel()

	w, err := CreateWriter("stderr")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	_, err = os.Stderr.Stat()
	require.NoError(t, err)
}
