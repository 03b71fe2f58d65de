package playback

import (
	"context"
	"sync"
)

// Job is one reply being synthesized and spoken. Its lifecycle is driven
// exclusively by the Controller.
type Job struct {
	ID   string
	Text string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	status    Status
	err       error
	cancelled bool
	audio     []byte
	released  int

	releaseOnce sync.Once
}

func newJob(id, text string) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	return &Job{
		ID:     id,
		Text:   text,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		status: StatusCreated,
	}
}

func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Done is closed once the job reached a terminal status and released its audio.
func (j *Job) Done() <-chan struct{} { return j.done }

// Releases reports how many times the audio resource was released.
func (j *Job) Releases() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.released
}

func (j *Job) setStatus(s Status) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = s
}

func (j *Job) setAudio(pcm []byte) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancelled {
		return false
	}
	j.audio = pcm
	return true
}

func (j *Job) requestCancel() {
	j.mu.Lock()
	j.cancelled = true
	j.mu.Unlock()
	j.cancel()
}

func (j *Job) release() {
	j.releaseOnce.Do(func() {
		j.mu.Lock()
		j.audio = nil
		j.released++
		j.mu.Unlock()
		j.cancel()
	})
}

func (j *Job) finish(err error) Result {
	j.mu.Lock()
	switch {
	case j.cancelled:
		j.status = StatusCancelled
	case err != nil:
		j.status = StatusFailed
		j.err = err
	default:
		j.status = StatusCompleted
	}
	res := Result{JobID: j.ID, Status: j.status, Err: j.err}
	j.mu.Unlock()
	return res
}
