// Package timer provides a resettable timer whose fires are tagged with the
// proposal height they were armed for, so that a consumer can discard fires
// which became stale after a reset.
package timer

import (
	"time"
)

type (
	// Timer is an interface which implements all time-related
	// functions. It can be mocked for testing.
	Timer interface {
		// Now returns current time.
		Now() time.Time
		// Reset arms the timer to fire a Tick after d.
		Reset(tick Tick, d time.Duration)
		// Sleep stops execution for duration d.
		Sleep(d time.Duration)
		// Extend multiplies the duration the timer was last armed
		// with by d, still counted from the moment of that Reset.
		Extend(d time.Duration)
		// Stop stops timer.
		Stop()
		// C returns channel where Tick events arrive
		// after timer has fired.
		C() <-chan Tick
	}

	// Tick identifies the proposal round a fire was armed for.
	Tick struct {
		Height uint64
	}

	value struct {
		Tick
		s time.Time
		d time.Duration
		e bool
	}

	timer struct {
		ch     chan Tick
		values chan value
		stop   chan struct{}
	}
)

var _ Timer = (*timer)(nil)

// New returns default Timer implementation.
func New() Timer {
	t := &timer{
		ch:     make(chan Tick, 1),
		values: make(chan value),
		stop:   make(chan struct{}, 1),
	}

	go t.loop()

	return t
}

// C implements Timer interface.
func (t *timer) C() <-chan Tick { return (<-chan Tick)(t.ch) }

// Reset implements Timer interface.
func (t *timer) Reset(tick Tick, d time.Duration) {
	t.values <- value{
		Tick: tick,
		s:    t.Now(),
		d:    d,
	}
}

// Stop implements Timer interface.
func (t *timer) Stop() {
	close(t.stop)
}

// Sleep implements Timer interface.
func (t *timer) Sleep(d time.Duration) {
	time.Sleep(d)
}

func getChan(tt *time.Timer) <-chan time.Time {
	if tt == nil {
		return nil
	}

	return tt.C
}

func stopTimer(tt *time.Timer) {
	if tt != nil {
		tt.Stop()
	}
}

func drain(ch <-chan Tick) {
	select {
	case <-ch:
	default:
	}
}

func (t *timer) loop() {
	var tt *time.Timer
	var toSend value

	for {
		select {
		case v := <-t.values:
			if !v.e {
				toSend.Tick = v.Tick
				toSend.s = v.s
				toSend.d = v.d
			} else {
				toSend.d *= v.d
			}

			stopTimer(tt)

			elapsed := time.Since(toSend.s)
			tt = time.NewTimer(toSend.d - elapsed)

		case <-getChan(tt):
			stopTimer(tt)
			tt = nil

			drain(t.ch)
			t.ch <- toSend.Tick

		case _, ok := <-t.stop:
			stopTimer(tt)
			tt = nil

			if !ok {
				drain(t.ch)
				return
			}
		}
	}
}

// Extend implements Timer interface.
func (t *timer) Extend(d time.Duration) {
	t.values <- value{d: d, e: true}
}

// Now implements Timer interface.
func (t *timer) Now() time.Time {
	return time.Now()
}
