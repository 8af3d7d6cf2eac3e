// Package keepalive keeps the sudo credential cache warm during long builds.
package keepalive

import (
	"context"
	"sync"
	"time"

	"github.com/imamik/podstrap/internal/platform/host"
)

// Logger is the subset of the execution log the task writes to.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// Task is a running keep-alive loop. The zero value and a nil Task are
// stopped tasks.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start refreshes the credential cache with `sudo -n -v` every interval
// until ctx is done or Stop is called. It returns a stopped task when the
// host already runs as root.
func Start(ctx context.Context, h host.Host, interval time.Duration, log Logger) *Task {
	if euid, err := h.Euid(ctx); err == nil && euid == 0 {
		log.Debugf("Running as root; credential keep-alive not needed")
		return &Task{}
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	go t.loop(ctx, h, interval, log)
	return t
}

func (t *Task) loop(ctx context.Context, h host.Host, interval time.Duration, log Logger) {
	defer close(t.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := h.Run(ctx, host.Command{Path: "sudo", Args: []string{"-n", "-v"}})
			switch {
			case ctx.Err() != nil:
				return
			case err != nil:
				log.Warnf("Could not refresh sudo credentials: %v", err)
			default:
				log.Debugf("Refreshed sudo credentials")
			}
		}
	}
}

// Stop cancels the loop and waits for it to exit. It is safe to call more
// than once.
func (t *Task) Stop() {
	if t == nil || t.cancel == nil {
		return
	}
	t.once.Do(func() {
		t.cancel()
		<-t.done
	})
}
