package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Controller is a single-flight gate over the audio output. Starting a new
// job stops the previous one first, synchronously.
type Controller struct {
	synth  Synthesizer
	player Player
	voice  string
	logger *slog.Logger

	// gate serializes Play and Stop so replacement is atomic.
	gate   sync.Mutex
	mu     sync.Mutex
	active *Job
}

func NewController(synth Synthesizer, player Player, voice string, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{synth: synth, player: player, voice: voice, logger: logger}
}

// Play stops any active job, then synthesizes and speaks text on a new job.
// The job counts as Playing from the moment Play returns. onDone runs once,
// after the job's audio has been released.
func (c *Controller) Play(text string, onDone func(Result)) *Job {
	c.gate.Lock()
	defer c.gate.Unlock()

	c.stopActive()

	job := newJob(uuid.NewString(), text)
	job.setStatus(StatusPlaying)

	c.mu.Lock()
	c.active = job
	c.mu.Unlock()

	go c.run(job, onDone)
	return job
}

func (c *Controller) run(job *Job, onDone func(Result)) {
	err := c.speak(job)

	res := job.finish(err)
	job.release()

	c.mu.Lock()
	if c.active == job {
		c.active = nil
	}
	c.mu.Unlock()
	close(job.done)

	switch res.Status {
	case StatusFailed:
		c.logger.Warn("playback: job failed", "job_id", job.ID, "error", res.Err)
	case StatusCancelled:
		c.logger.Debug("playback: job cancelled", "job_id", job.ID)
	}

	if onDone != nil {
		onDone(res)
	}
}

func (c *Controller) speak(job *Job) error {
	if c.synth == nil || c.player == nil {
		return errors.New("playback: no audio output configured")
	}
	pcm, err := c.synth.Synthesize(job.ctx, job.Text, c.voice)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	if len(pcm) == 0 {
		return ErrNoAudio
	}
	if !job.setAudio(pcm) {
		return nil
	}
	if err := c.player.Play(job.ctx, pcm); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}

// Stop halts the active job, if any, and waits until its audio is released.
func (c *Controller) Stop() {
	c.gate.Lock()
	defer c.gate.Unlock()
	c.stopActive()
}

func (c *Controller) stopActive() {
	c.mu.Lock()
	job := c.active
	c.active = nil
	c.mu.Unlock()

	if job == nil {
		return
	}
	job.requestCancel()
	<-job.done
}

func (c *Controller) Active() *Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}
