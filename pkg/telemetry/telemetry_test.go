package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceWrittenPerOperation(t *testing.T) {
	dir := t.TempDir()
	tl, err := New(dir, 4096, 16, 10*time.Millisecond, 1<<20)
	require.NoError(t, err)

	tr := tl.Track("api.thread.get")
	tr.Mark("load")
	tr.Finish()
	tr.Finish() // second call is a no-op
	tl.Close()

	f, err := os.Open(filepath.Join(dir, "api.thread.get.jsonl"))
	require.NoError(t, err)
	defer f.Close()
	sc := bufio.NewScanner(f)
	lines := 0
	for sc.Scan() {
		var got Trace
		require.NoError(t, json.Unmarshal(sc.Bytes(), &got))
		assert.Equal(t, "api.thread.get", got.Name)
		assert.Equal(t, "load", got.Steps[0].Name)
		lines++
	}
	assert.Equal(t, 1, lines)
}

func TestDisabledTrackIsNoop(t *testing.T) {
	Close()
	assert.False(t, Enabled())
	tr := Track("api.noop")
	tr.Mark("x")
	tr.Finish()
}

func TestClientReporter(t *testing.T) {
	_, err := NewClientReporter("not a cron", func() int { return 0 })
	assert.Error(t, err)

	r, err := NewClientReporter("* * * * *", func() int { return 3 })
	require.NoError(t, err)
	r.Report()
	r.Report()
	assert.Equal(t, 2, r.Reports())
}

func TestRotateOnSizeLimit(t *testing.T) {
	dir := t.TempDir()
	tl, err := New(dir, 64, 64, time.Hour, 200)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		tl.Track("api.event.patch").Finish()
	}
	tl.Close()

	_, err = os.Stat(filepath.Join(dir, "api.event.patch.jsonl.1"))
	assert.NoError(t, err)
	assert.Zero(t, tl.Dropped())
}

func TestCloseFlushesQueuedTraces(t *testing.T) {
	dir := t.TempDir()
	tl, err := New(dir, 4096, 128, time.Hour, 0)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		tl.Track("api.user.list").Finish()
	}
	tl.Close()

	b, err := os.ReadFile(filepath.Join(dir, "api.user.list.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 50, bytes.Count(b, []byte("\n")))
}
