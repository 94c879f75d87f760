package main

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sweeney/footswitch/internal/config"
	"github.com/sweeney/footswitch/internal/evdev"
	"github.com/sweeney/footswitch/internal/gesture"
	"github.com/sweeney/footswitch/internal/gpio"
	"github.com/sweeney/footswitch/internal/input"
	"github.com/sweeney/footswitch/internal/timer"
)

func openSource(b config.ButtonConfig, logger *zap.SugaredLogger) (input.Source, error) {
	switch b.Source {
	case config.SourceGPIO:
		btn, err := gpio.NewButton(gpio.Config{
			Name:      b.Name,
			Chip:      b.Chip,
			Pin:       b.Pin,
			ActiveLow: b.ActiveLow,
			Momentary: b.IsMomentary(),
		}, logger)
		if err != nil {
			return nil, err
		}
		return btn, nil
	case config.SourceEvdev:
		key, err := evdev.Open(evdev.Config{
			Name:    b.Name,
			Device:  b.Device,
			KeyCode: b.KeyCode,
			Grab:    b.Grab,
		}, logger)
		if err != nil {
			return nil, err
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unknown source %q", b.Source)
	}
}

// gestureConfig returns the effective gesture settings of a button, the same
// values the classifier runs with and the status page shows.
func gestureConfig(b config.ButtonConfig) gesture.Config {
	return gesture.Config{
		Name:             b.Name,
		Momentary:        b.IsMomentary(),
		LongPressDelay:   b.LongPress,
		DoublePressDelay: b.DoublePress,
	}.WithDefaults()
}

// newClassifier builds the classifier for one source and forwards its
// gestures to out, stamped with svc's clock. The source's own momentary trait
// wins over the configuration (evdev keys are always momentary).
func newClassifier(src input.Source, b config.ButtonConfig, svc *timer.Service, out chan<- gesture.Event, logger *zap.SugaredLogger) *gesture.Classifier {
	gc := gestureConfig(b)
	gc.Momentary = src.Momentary()
	c := gesture.New(gc, svc, logger)

	forward := func(kind gesture.Kind) gesture.Listener {
		return func(bool) {
			ev := gesture.Event{Timestamp: svc.Now(), Button: gc.Name, Kind: kind}
			select {
			case out <- ev:
			default:
				logger.Warnw("gesture queue full, dropping", "button", gc.Name, "gesture", kind)
			}
		}
	}
	c.SinglePress().AddListener(forward(gesture.SinglePress))
	c.DoublePress().AddListener(forward(gesture.DoublePress))
	c.LongPress().AddListener(forward(gesture.LongPress))
	c.Raw().AddListener(func(down bool) {
		logger.Debugw("unclassified transition", "button", gc.Name, "down", down)
	})
	return c
}

// pump feeds one source into its classifier until the source stops.
func pump(src input.Source, c *gesture.Classifier, logger *zap.SugaredLogger) {
	for tr := range src.Transitions() {
		logger.Debugw("transition", "button", src.Name(), "down", tr.Down, "at", tr.Time)
		if err := c.OnTransition(tr.Down); err != nil {
			logger.Warnw("transition not classified", "button", src.Name(), "error", err)
		}
	}
	if err := src.Err(); err != nil {
		logger.Errorw("input stopped", "button", src.Name(), "error", err)
		return
	}
	logger.Infow("input closed", "button", src.Name())
}

// pumpAll runs one pump per source and closes done when every source has
// stopped.
func pumpAll(sources []input.Source, classifiers []*gesture.Classifier, done chan<- struct{}, logger *zap.SugaredLogger) {
	var wg sync.WaitGroup
	for i := range sources {
		wg.Add(1)
		go func(src input.Source, c *gesture.Classifier) {
			defer wg.Done()
			pump(src, c, logger)
		}(sources[i], classifiers[i])
	}
	wg.Wait()
	close(done)
}
