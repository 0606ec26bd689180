package generator

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoOpProgress(t *testing.T) {
	p := NoOpProgress{}
	p.OnStart("vol", 10)
	p.OnProgress(5, 10)
	p.OnError(3, assert.AnError)
	p.OnComplete()
}

func TestConsoleProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewConsoleProgress(&buf).WithWidth(10).WithUpdateInterval(0)

	p.OnStart("vol1", 4)
	assert.Contains(t, buf.String(), "vol1 [░░░░░░░░░░] 0/4 (0.0%)")

	buf.Reset()
	time.Sleep(5 * time.Millisecond)
	p.OnProgress(2, 4)
	out := buf.String()
	assert.Contains(t, out, "█████░░░░░")
	assert.Contains(t, out, "2/4 (50.0%)")
	assert.Contains(t, out, "pages/s")
	assert.Contains(t, out, "ETA")

	buf.Reset()
	p.OnError(3, assert.AnError)
	assert.Contains(t, buf.String(), "vol1: error at page 3")

	buf.Reset()
	p.OnComplete()
	assert.Contains(t, buf.String(), "vol1: done in")
}

func TestConsoleProgressThrottles(t *testing.T) {
	var buf bytes.Buffer
	p := NewConsoleProgress(&buf).WithUpdateInterval(time.Hour)
	p.OnStart("vol1", 10)
	p.OnProgress(1, 10)

	buf.Reset()
	p.OnProgress(2, 10)
	assert.Empty(t, buf.String())

	p.OnProgress(10, 10)
	assert.Contains(t, buf.String(), "10/10")
}

func TestLogProgress(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	p := NewLogProgress(logger, 2)

	p.OnStart("vol1", 3)
	p.OnProgress(1, 3)
	p.OnProgress(2, 3)
	p.OnProgress(3, 3)
	p.OnError(2, assert.AnError)
	p.OnComplete()

	out := buf.String()
	assert.Contains(t, out, "Processing pages")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("Progress update")))
	assert.Contains(t, out, "Page error")
	assert.Contains(t, out, "Pages completed")
}

func TestNewProgressWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.IsType(t, &LogProgress{}, NewProgress(&buf))
	assert.False(t, IsTerminal(&buf))
}
