package logger

import (
	"bufio"
	"bytes"
	"io"
	"sync"
	"time"
)

var (
	errorLevelTag = []byte(`"level":"error"`)
	fatalLevelTag = []byte(`"level":"fatal"`)
)

// SmartWriter buffers log lines in memory and flushes them when the buffer
// fills, when the flush interval elapses, when an error/fatal line is
// written, or when Sync/Close is called.
type SmartWriter struct {
	mu            sync.Mutex
	bufWriter     *bufio.Writer
	flushInterval time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// NewSmartWriter creates a new SmartWriter with a 256KB buffer
func NewSmartWriter(w io.Writer, flushInterval time.Duration) *SmartWriter {
	sw := &SmartWriter{
		bufWriter:     bufio.NewWriterSize(w, 256*1024),
		flushInterval: flushInterval,
		stopChan:      make(chan struct{}),
	}
	sw.wg.Add(1)
	go sw.runFlusher()
	return sw
}

// Write implements io.Writer
func (sw *SmartWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	n, err := sw.bufWriter.Write(p)
	if bytes.Contains(p, errorLevelTag) || bytes.Contains(p, fatalLevelTag) {
		_ = sw.bufWriter.Flush()
	}
	return n, err
}

// Sync flushes the buffer
func (sw *SmartWriter) Sync() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.bufWriter.Flush()
}

// Close stops the background flusher and flushes what is left
func (sw *SmartWriter) Close() error {
	sw.stopOnce.Do(func() { close(sw.stopChan) })
	sw.wg.Wait()
	return sw.Sync()
}

func (sw *SmartWriter) runFlusher() {
	defer sw.wg.Done()
	ticker := time.NewTicker(sw.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = sw.Sync()
		case <-sw.stopChan:
			return
		}
	}
}
