// Package logtail follows job log files so the TUI can display output
// that a job's own shell redirections wrote to disk.
package logtail

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/modoterra/cronium/pkg/core"
)

const pollInterval = 250 * time.Millisecond

// Tailer follows log files for jobs, one subscription per job.
type Tailer struct {
	subs   map[string]*subscription
	mu     sync.Mutex
	logger *slog.Logger
}

type subscription struct {
	cancel context.CancelFunc
	ch     chan core.RunLine
}

// New creates a new log file tailer.
func New(logger *slog.Logger) *Tailer {
	return &Tailer{
		subs:   make(map[string]*subscription),
		logger: logger,
	}
}

// Subscribe starts tailing the given file for a job, beginning at the
// current end of file. A second subscription for the same job returns
// the existing channel.
func (t *Tailer) Subscribe(ctx context.Context, job string, filePath string) (<-chan core.RunLine, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if sub, ok := t.subs[job]; ok {
		return sub.ch, nil
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filePath, err)
	}
	f.Seek(0, io.SeekEnd)

	subCtx, cancel := context.WithCancel(ctx)
	ch := make(chan core.RunLine, 100)

	go t.follow(subCtx, f, job, ch)

	t.subs[job] = &subscription{cancel: cancel, ch: ch}
	t.logger.Info("tailing log file", "path", filePath, "job", job)
	return ch, nil
}

// Unsubscribe stops tailing for the given job.
func (t *Tailer) Unsubscribe(job string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	sub, ok := t.subs[job]
	if !ok {
		return nil
	}
	sub.cancel()
	delete(t.subs, job)
	return nil
}

// Close stops all subscriptions.
func (t *Tailer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for job, sub := range t.subs {
		sub.cancel()
		delete(t.subs, job)
	}
}

func (t *Tailer) follow(ctx context.Context, f *os.File, job string, ch chan core.RunLine) {
	defer f.Close()
	defer close(ch)

	reader := bufio.NewReader(f)
	var partial string
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			// No new data. A line written without its newline yet is
			// kept and completed on a later read. Poll, and restart
			// from the top if the file was truncated by rotation.
			partial += line
			time.Sleep(pollInterval)
			info, serr := f.Stat()
			if serr != nil {
				continue
			}
			pos, _ := f.Seek(0, io.SeekCurrent)
			if info.Size() < pos {
				f.Seek(0, io.SeekStart)
				reader.Reset(f)
				partial = ""
			}
			continue
		}

		entry := core.RunLine{
			Job:      job,
			TsUnixMs: time.Now().UnixMilli(),
			Stream:   "logfile",
			Line:     strings.TrimRight(partial+line, "\n"),
		}
		partial = ""
		select {
		case ch <- entry:
		default:
		}
	}
}
