package voice

import (
	"context"
	"sync"
	"time"

	piazza_errors "piazza-chat/pkg/errors"
)

// State is the recorder's lifecycle position. Cancelled and sending are
// exit states; the recorder returns to idle after either.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateLocked    State = "locked"
	StateSending   State = "sending"
	StateCancelled State = "cancelled"
)

// Chunk is one slice of captured audio with its sampled level (0..1).
type Chunk struct {
	Data  []byte
	Level float64
}

// Stream is an acquired microphone capture. Chunks closes when the stream
// is stopped; Close is idempotent and releases the device.
type Stream interface {
	Chunks() <-chan Chunk
	MimeType() string
	Close() error
}

// Microphone acquires the capture device. Acquire fails with
// piazza_errors.ErrMicDenied when permission is refused and
// piazza_errors.ErrMicBusy when another session holds the device; nothing
// is held in either case.
type Microphone interface {
	Acquire(ctx context.Context) (Stream, error)
}

// Config carries the tuned gesture and duration constants.
type Config struct {
	// MinDuration below which a release cancels instead of sending.
	MinDuration time.Duration
	// MaxDuration at which capture stops on its own.
	MaxDuration time.Duration
	// LockThreshold is the upward drag distance (px) that locks the
	// recording hands-free.
	LockThreshold float64
	// CancelThreshold is the leftward drag distance (px) that discards an
	// unlocked recording.
	CancelThreshold float64
	// WaveformBuckets is the derived waveform resolution.
	WaveformBuckets int
}

func (c *Config) applyDefaults() {
	if c.MinDuration <= 0 {
		c.MinDuration = 500 * time.Millisecond
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = 60 * time.Second
	}
	if c.LockThreshold <= 0 {
		c.LockThreshold = 80
	}
	if c.CancelThreshold <= 0 {
		c.CancelThreshold = 120
	}
	if c.WaveformBuckets <= 0 {
		c.WaveformBuckets = 48
	}
}

// Result is a finished capture ready for upload.
type Result struct {
	Data     []byte
	Duration time.Duration
	MimeType string
	Waveform []float64
}

// Recorder turns abstract gesture events (start, move delta, release,
// trash) and a microphone stream into a finished audio payload. It holds
// the microphone for at most one session at a time and releases it on
// every exit path.
type Recorder struct {
	mu  sync.Mutex
	cfg Config
	mic Microphone

	state     State
	stream    Stream
	started   time.Time
	stoppedAt time.Time
	offsetX   float64
	offsetY   float64
	level     float64
	data      []byte
	levels    []float64
	drainWG   sync.WaitGroup
	maxTimer  *time.Timer

	now func() time.Time
}

func NewRecorder(mic Microphone, cfg Config) *Recorder {
	cfg.applyDefaults()
	return &Recorder{
		cfg:   cfg,
		mic:   mic,
		state: StateIdle,
		now:   time.Now,
	}
}

// State returns the current lifecycle position.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Elapsed returns how long the current capture has been running.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording && r.state != StateLocked {
		return 0
	}
	return r.elapsedLocked()
}

// elapsedLocked returns the captured length so far. After an auto-stop it
// stays pinned at the stop instant.
func (r *Recorder) elapsedLocked() time.Duration {
	end := r.now()
	if !r.stoppedAt.IsZero() && r.stoppedAt.Before(end) {
		end = r.stoppedAt
	}
	return end.Sub(r.started)
}

// Level returns the latest sampled audio level for visualization.
func (r *Recorder) Level() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.level
}

// Offset returns the accumulated gesture drag (x, y).
func (r *Recorder) Offset() (float64, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offsetX, r.offsetY
}

// Start begins a capture: idle -> recording. Permission denial surfaces
// the microphone error and leaves nothing acquired.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return piazza_errors.ErrBadTransition
	}
	r.mu.Unlock()

	stream, err := r.mic.Acquire(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		_ = stream.Close()
		return piazza_errors.ErrBadTransition
	}
	r.state = StateRecording
	r.stream = stream
	r.started = r.now()
	r.stoppedAt = time.Time{}
	r.offsetX, r.offsetY = 0, 0
	r.level = 0
	r.data = nil
	r.levels = nil
	r.maxTimer = time.AfterFunc(r.cfg.MaxDuration, r.autoStop)
	r.drainWG.Add(1)
	r.mu.Unlock()

	go r.drain(stream)
	return nil
}

// autoStop ends capture when MaxDuration elapses while the user still
// holds the gesture. The stop instant is recorded so Release reports the
// captured length, not the wall time of a late release.
func (r *Recorder) autoStop() {
	r.mu.Lock()
	if r.state != StateRecording && r.state != StateLocked {
		r.mu.Unlock()
		return
	}
	r.stoppedAt = r.now()
	stream := r.stream
	r.mu.Unlock()

	_ = stream.Close()
}

// drain buffers audio and level samples until the stream ends.
func (r *Recorder) drain(stream Stream) {
	defer r.drainWG.Done()
	for chunk := range stream.Chunks() {
		r.mu.Lock()
		r.data = append(r.data, chunk.Data...)
		r.levels = append(r.levels, chunk.Level)
		r.level = chunk.Level
		r.mu.Unlock()
	}
}

// MoveDelta applies a gesture drag. Dragging up past the lock threshold
// locks the recording hands-free; dragging left past the cancel threshold
// (only while unlocked) discards it.
func (r *Recorder) MoveDelta(dx, dy float64) {
	r.mu.Lock()
	if r.state != StateRecording && r.state != StateLocked {
		r.mu.Unlock()
		return
	}
	r.offsetX += dx
	r.offsetY += dy

	if r.state == StateRecording && -r.offsetY >= r.cfg.LockThreshold {
		r.state = StateLocked
		r.mu.Unlock()
		return
	}
	if r.state == StateRecording && -r.offsetX >= r.cfg.CancelThreshold {
		r.mu.Unlock()
		r.Cancel()
		return
	}
	r.mu.Unlock()
}

// Release ends a press-and-hold (or an explicit stop while locked). Below
// the minimum duration the capture cancels instead of sending; otherwise
// the buffered audio is returned for upload and the recorder transitions
// through sending back to idle.
func (r *Recorder) Release() (Result, error) {
	r.mu.Lock()
	if r.state != StateRecording && r.state != StateLocked {
		r.mu.Unlock()
		return Result{}, piazza_errors.ErrBadTransition
	}
	elapsed := r.elapsedLocked()
	if elapsed < r.cfg.MinDuration {
		r.mu.Unlock()
		r.Cancel()
		return Result{}, piazza_errors.ErrTooShort
	}
	r.state = StateSending
	stream := r.stream
	r.mu.Unlock()

	// Stop capture and wait for the drain goroutine to flush buffered
	// chunks before reading them.
	_ = stream.Close()
	r.drainWG.Wait()

	r.mu.Lock()
	result := Result{
		Data:     r.data,
		Duration: elapsed,
		MimeType: stream.MimeType(),
		Waveform: Downsample(r.levels, r.cfg.WaveformBuckets),
	}
	r.releaseLocked()
	r.mu.Unlock()
	return result, nil
}

// Cancel discards the capture from any pre-sending state and releases the
// microphone. Safe to call on teardown regardless of state.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	if r.state == StateIdle {
		r.mu.Unlock()
		return
	}
	stream := r.stream
	r.state = StateCancelled
	r.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
		r.drainWG.Wait()
	}

	r.mu.Lock()
	r.releaseLocked()
	r.mu.Unlock()
}

// releaseLocked clears session state and returns to idle. Every exit path
// funnels through here so no resource outlives the session.
func (r *Recorder) releaseLocked() {
	if r.maxTimer != nil {
		r.maxTimer.Stop()
		r.maxTimer = nil
	}
	r.stream = nil
	r.stoppedAt = time.Time{}
	r.data = nil
	r.levels = nil
	r.level = 0
	r.offsetX, r.offsetY = 0, 0
	r.state = StateIdle
}
