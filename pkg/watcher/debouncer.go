package watcher

import (
	"context"
	"time"

	"github.com/ritzau/flow-editor/pkg/logging"
)

// Debouncer batches rapid file system events. A batch is flushed once no
// event arrived for quietPeriod, or maxWait after its first event.
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new event debouncer
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 10),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing events with debouncing
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	quiet := time.NewTimer(d.quietPeriod)
	quiet.Stop()
	deadline := time.NewTimer(d.maxWait)
	deadline.Stop()

	var (
		paths   []string
		seen    = make(map[string]bool)
		pending bool
	)

	flush := func() {
		if !pending {
			return
		}
		logging.Debug("flushing accumulated file events", "paths", len(paths))
		select {
		case d.output <- ChangeEvent{Paths: paths, Timestamp: time.Now()}:
		case <-ctx.Done():
		}
		paths = nil
		seen = make(map[string]bool)
		pending = false
		quiet.Stop()
		deadline.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}
			for _, p := range event.Paths {
				if !seen[p] {
					seen[p] = true
					paths = append(paths, p)
				}
			}
			if !pending {
				pending = true
				deadline.Reset(d.maxWait)
			}
			quiet.Reset(d.quietPeriod)

		case <-quiet.C:
			flush()

		case <-deadline.C:
			flush()
		}
	}
}

// Output returns the channel of debounced events
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}
