package recognition

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDetectorSilenceFiresCallback(t *testing.T) {
	detector := NewDetector(30 * time.Millisecond)

	done := make(chan struct{}, 1)
	detector.OnSilence(func() {
		done <- struct{}{}
	})

	detector.OnPause()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected silence callback to fire")
	}
}

func TestDetectorSpeechResetsTimer(t *testing.T) {
	detector := NewDetector(80 * time.Millisecond)

	var fired atomic.Int32
	detector.OnSilence(func() {
		fired.Add(1)
	})

	detector.OnPause()
	time.Sleep(20 * time.Millisecond)
	detector.OnSpeech()

	time.Sleep(100 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("expected 0 callbacks after speech reset, got %d", fired.Load())
	}
}

func TestDetectorRepeatedPauseFiresOnce(t *testing.T) {
	detector := NewDetector(30 * time.Millisecond)

	var fired atomic.Int32
	detector.OnSilence(func() {
		fired.Add(1)
	})

	detector.OnPause()
	detector.OnPause()
	detector.OnPause()

	time.Sleep(120 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("expected exactly 1 callback, got %d", got)
	}
}

func TestDetectorStopDropsPendingCallback(t *testing.T) {
	detector := NewDetector(20 * time.Millisecond)

	var fired atomic.Int32
	detector.OnSilence(func() {
		fired.Add(1)
	})

	detector.OnPause()
	detector.Stop()

	time.Sleep(60 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("expected no callback after Stop, got %d", fired.Load())
	}
}

func TestDetectorDefaultsNonPositiveTimeout(t *testing.T) {
	detector := NewDetector(0)
	if detector.timeout != DefaultSilenceTimeout {
		t.Fatalf("expected default timeout %s, got %s", DefaultSilenceTimeout, detector.timeout)
	}
}
