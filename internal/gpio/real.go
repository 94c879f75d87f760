//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/zap"

	"github.com/sweeney/footswitch/internal/input"
)

// Button watches one GPIO line for both edges.
type Button struct {
	cfg    Config
	line   *gpiocdev.Line
	logger *zap.SugaredLogger

	mu     sync.Mutex
	ch     chan input.Transition
	closed bool
	last   bool
	seen   bool
}

// NewButton requests the line described by cfg.
func NewButton(cfg Config, logger *zap.SugaredLogger) (*Button, error) {
	if cfg.Chip == "" {
		cfg.Chip = DefaultChip
	}
	b := &Button{
		cfg:    cfg,
		logger: logger.Named("gpio").With("button", cfg.Name, "pin", cfg.Pin),
		ch:     input.NewTransitionChan(),
	}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(b.handleEvent),
		gpiocdev.WithConsumer("footswitch"),
	}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow, gpiocdev.WithPullUp)
	} else {
		opts = append(opts, gpiocdev.WithPullDown)
	}

	line, err := gpiocdev.RequestLine(cfg.Chip, cfg.Pin, opts...)
	if err != nil {
		return nil, fmt.Errorf("request %s pin %d: %w", cfg.Chip, cfg.Pin, err)
	}
	b.line = line
	return b, nil
}

// Name returns the configured button name.
func (b *Button) Name() string { return b.cfg.Name }

// Momentary returns the configured trait.
func (b *Button) Momentary() bool { return b.cfg.Momentary }

// Transitions delivers one transition per logical edge.
func (b *Button) Transitions() <-chan input.Transition { return b.ch }

// Err always returns nil: the line only stops on Close.
func (b *Button) Err() error { return nil }

// Value reads the current logical level (true = pressed).
func (b *Button) Value() (bool, error) {
	v, err := b.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", b.cfg.Pin, err)
	}
	return v == 1, nil
}

// handleEvent runs on the gpiocdev watcher goroutine.
// Edges are reported in logical terms, so active-low lines need no inversion.
func (b *Button) handleEvent(evt gpiocdev.LineEvent) {
	down := evt.Type == gpiocdev.LineEventRisingEdge

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	// Two edges in the same direction mean a missed edge in between;
	// forward anyway, the classifier tolerates repeats.
	if b.seen && b.last == down {
		b.logger.Debugw("repeated edge", "down", down, "seqno", evt.Seqno)
	}
	b.last, b.seen = down, true

	select {
	case b.ch <- input.Transition{Down: down, Time: time.Now()}:
	default:
		b.logger.Warnw("transition dropped, consumer too slow", "down", down)
	}
}

// Close releases the line. The line is first reconfigured to input with
// pull-down (matching Pi boot defaults) so external hardware does not hold the
// pin in an unexpected state during the next boot.
func (b *Button) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.ch)
	b.mu.Unlock()

	var errs []error
	if b.line != nil {
		if err := b.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", b.cfg.Pin, err))
		}
		if err := b.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", b.cfg.Pin, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
