package logger_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Hollow93/social-casino/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lockedBuffer captures writes; the flusher goroutine writes concurrently with reads.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSmartWriter_ImmediateFlushOnError(t *testing.T) {
	out := &lockedBuffer{}
	sw := logger.NewSmartWriter(out, 10*time.Second)
	defer sw.Close()

	infoLog := []byte(`{"level":"info","message":"test info"}` + "\n")
	n, err := sw.Write(infoLog)
	require.NoError(t, err)
	assert.Equal(t, len(infoLog), n)
	assert.Empty(t, out.String(), "info log should stay buffered")

	errorLog := []byte(`{"level":"error","message":"test error"}` + "\n")
	_, err = sw.Write(errorLog)
	require.NoError(t, err)

	assert.Equal(t, string(infoLog)+string(errorLog), out.String())
}

func TestSmartWriter_AutoFlush(t *testing.T) {
	out := &lockedBuffer{}
	sw := logger.NewSmartWriter(out, 50*time.Millisecond)
	defer sw.Close()

	infoLog := []byte(`{"level":"info","message":"tick"}` + "\n")
	_, _ = sw.Write(infoLog)

	assert.Eventually(t, func() bool {
		return out.String() == string(infoLog)
	}, time.Second, 10*time.Millisecond)
}

func TestSmartWriter_ExplicitSync(t *testing.T) {
	out := &lockedBuffer{}
	sw := logger.NewSmartWriter(out, 10*time.Second)
	defer sw.Close()

	infoLog := []byte(`{"level":"info","message":"sync me"}` + "\n")
	_, _ = sw.Write(infoLog)
	assert.Empty(t, out.String())

	require.NoError(t, sw.Sync())
	assert.Equal(t, string(infoLog), out.String())
}

func TestContextLoggerCarriesFields(t *testing.T) {
	out := &lockedBuffer{}
	logger.Init(logger.Config{Level: "debug", Format: "json", Output: out})

	ctx := logger.WithRequestID(context.Background(), "req-1")
	ctx = logger.WithUser(ctx, 42)
	ctx = logger.WithFields(ctx, map[string]interface{}{"panel_id": 1})
	logger.Info(ctx).Msg("bet placed")
	logger.Flush()

	line := out.String()
	assert.Contains(t, line, `"request_id":"req-1"`)
	assert.Contains(t, line, `"user_id":42`)
	assert.Contains(t, line, `"panel_id":1`)
	assert.Equal(t, "req-1", logger.GetRequestID(ctx))
}

func TestInitWithFileWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "crash.log")
	logger.InitWithFile(path, "info", "json", false)

	logger.InfoGlobal().Msg("written to file")
	logger.Flush()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "written to file")
}
