package recognition

import (
	"sync"
	"time"
)

// Detector fires a callback once speech has been silent for the configured
// timeout. Speech resets the countdown.
type Detector struct {
	timeout   time.Duration
	mu        sync.Mutex
	timer     *time.Timer
	onSilence func()
}

func NewDetector(timeout time.Duration) *Detector {
	if timeout <= 0 {
		timeout = DefaultSilenceTimeout
	}
	return &Detector{timeout: timeout}
}

func (d *Detector) OnSilence(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSilence = callback
}

// OnSpeech cancels any pending countdown.
func (d *Detector) OnSpeech() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// OnPause starts (or restarts) the silence countdown.
func (d *Detector) OnPause() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(d.timeout, func() {
		d.mu.Lock()
		if d.timer != timer {
			d.mu.Unlock()
			return
		}
		callback := d.onSilence
		d.timer = nil
		d.mu.Unlock()

		if callback != nil {
			callback()
		}
	})
	d.timer = timer
}

// Stop cancels the countdown and drops the callback.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.onSilence = nil
}
