package testutil

import (
	"errors"
	"strings"
	"sync"
)

// MockWriter is a concurrency-safe io.Writer that keeps every Write call as
// a separate chunk, so tests can check that output blocks arrive whole. It
// can also be told to fail.
type MockWriter struct {
	mu         sync.Mutex
	writes     []string
	errorOnNth int
	calls      int
	err        error
}

// NewMockWriter creates a new MockWriter.
func NewMockWriter() *MockWriter {
	return &MockWriter{}
}

// Write records p as one chunk unless a failure is configured.
func (mw *MockWriter) Write(p []byte) (int, error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	mw.calls++
	if mw.err != nil {
		return 0, mw.err
	}
	if mw.errorOnNth > 0 && mw.calls == mw.errorOnNth {
		return 0, errors.New("simulated error")
	}

	mw.writes = append(mw.writes, string(p))
	return len(p), nil
}

// String returns everything written so far.
func (mw *MockWriter) String() string {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return strings.Join(mw.writes, "")
}

// Writes returns the successful Write calls in order, one chunk each.
func (mw *MockWriter) Writes() []string {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return append([]string(nil), mw.writes...)
}

// Len returns the number of bytes written.
func (mw *MockWriter) Len() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	n := 0
	for _, w := range mw.writes {
		n += len(w)
	}
	return n
}

// WriteCount returns the number of Write calls, failed ones included.
func (mw *MockWriter) WriteCount() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.calls
}

// SetErrorOnNth makes the nth Write call fail.
func (mw *MockWriter) SetErrorOnNth(n int) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.errorOnNth = n
}

// SetAlwaysError makes every Write return err.
func (mw *MockWriter) SetAlwaysError(err error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.err = err
}

// Reset clears recorded output, counters and configured failures.
func (mw *MockWriter) Reset() {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.writes = nil
	mw.calls = 0
	mw.errorOnNth = 0
	mw.err = nil
}
