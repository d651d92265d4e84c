package amcodec

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// vsyncTimeout bounds the wait for a vsync event; the clock ticks anyway.
const vsyncTimeout = 100 * time.Millisecond

// ClockUpdateFunc advances a reference clock by ticks vblanks observed at now.
type ClockUpdateFunc func(ticks int, now time.Time)

// VideoSync drives a reference clock from the amvideo vsync interrupt. The
// interrupt source is injected as a channel that receives one value per
// vblank.
type VideoSync struct {
	vsync   <-chan struct{}
	fps     func() float64
	log     logrus.FieldLogger
	timeout time.Duration

	update ClockUpdateFunc
	abort  atomic.Bool
}

// NewVideoSync creates a clock source. fps reports the current display
// refresh rate; it may be nil.
func NewVideoSync(vsync <-chan struct{}, fps func() float64, logger logrus.FieldLogger) *VideoSync {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &VideoSync{
		vsync:   vsync,
		fps:     fps,
		log:     logger.WithField("module", "videosync"),
		timeout: vsyncTimeout,
	}
}

// Setup installs the clock callback and clears a previous abort.
func (v *VideoSync) Setup(update ClockUpdateFunc) error {
	if update == nil {
		return errors.New("amcodec: nil clock update")
	}
	v.update = update
	v.abort.Store(false)
	v.log.Debug("setting up aml video sync")
	return nil
}

// Run ticks the clock once per vsync event, or once per timeout when events
// stop, until ctx is done or the display is reset.
func (v *VideoSync) Run(ctx context.Context) {
	if v.update == nil {
		return
	}
	timer := time.NewTimer(v.timeout)
	defer timer.Stop()

	for ctx.Err() == nil && !v.abort.Load() {
		select {
		case <-ctx.Done():
			return
		case <-v.vsync:
		case <-timer.C:
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(v.timeout)

		v.update(1, time.Now())
	}
}

// Cleanup is called once Run has returned.
func (v *VideoSync) Cleanup() {
	v.log.Debug("cleaning up aml video sync")
}

// FPS returns the display refresh rate.
func (v *VideoSync) FPS() float64 {
	if v.fps == nil {
		return 0
	}
	fps := v.fps()
	v.log.WithField("fps", fps).Debug("video sync fps")
	return fps
}

// OnResetDisplay aborts Run; the display mode changed and the clock must be
// set up again.
func (v *VideoSync) OnResetDisplay() {
	v.abort.Store(true)
}
