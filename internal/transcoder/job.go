package transcoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"voice-transcoder/internal/logging"

	"github.com/google/uuid"
)

// State is the lifecycle position of an encoder process.
type State int

const (
	// StateSpawned is the initial state: the job exists but no process runs yet.
	StateSpawned State = iota
	// StateRunning means the process started and has not been reaped.
	StateRunning
	// StateSucceeded means the process exited with status 0.
	StateSucceeded
	// StateFailed means the process (or the I/O around it) failed.
	StateFailed
	// StateSpawnError means the process never started.
	StateSpawnError
)

func (s State) String() string {
	switch s {
	case StateSpawned:
		return "spawned"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateSpawnError:
		return "spawn_error"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateSpawnError
}

var transitions = map[State][]State{
	StateSpawned: {StateRunning, StateSpawnError, StateFailed},
	StateRunning: {StateSucceeded, StateFailed},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// defaultStderrLimit bounds the retained diagnostic tail per job.
const defaultStderrLimit = 16 * 1024

// EncodeJob is one encoder invocation.
type EncodeJob struct {
	ID        string
	Mode      Mode
	Input     string
	Output    string
	CreatedAt time.Time

	log    logging.Logger
	stderr *tailBuffer

	mu        sync.Mutex
	state     State
	cmd       *exec.Cmd
	exitCode  int
	cause     error
	startedAt time.Time
	endedAt   time.Time
	abandoned bool
	cancel    context.CancelFunc
	onExit    func(*EncodeJob)
}

// NewJobID returns an identifier unique per request: a millisecond timestamp
// for readability plus a random UUID for collision freedom under bursts.
func NewJobID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + uuid.NewString()
}

func newJob(mode Mode, stderrLimit int) *EncodeJob {
	if stderrLimit <= 0 {
		stderrLimit = defaultStderrLimit
	}
	id := NewJobID()
	return &EncodeJob{
		ID:        id,
		Mode:      mode,
		CreatedAt: time.Now(),
		log:       logging.With("job", id, "mode", string(mode)),
		stderr:    newTailBuffer(stderrLimit),
		state:     StateSpawned,
		exitCode:  -1,
	}
}

// State returns the current lifecycle state.
func (j *EncodeJob) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// ExitCode returns the process exit code, or -1 if it did not exit normally.
func (j *EncodeJob) ExitCode() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.exitCode
}

// Err returns the error that moved the job to a failure state.
func (j *EncodeJob) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cause
}

// Duration returns how long the process ran. Zero until it ends.
func (j *EncodeJob) Duration() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.startedAt.IsZero() || j.endedAt.IsZero() {
		return 0
	}
	return j.endedAt.Sub(j.startedAt)
}

// Stderr returns the retained tail of the encoder's diagnostic output.
func (j *EncodeJob) Stderr() string {
	return j.stderr.String()
}

// Logger returns the job-scoped logger.
func (j *EncodeJob) Logger() logging.Logger {
	return j.log
}

// transition moves the job to the given state. It must be called with j.mu
// held.
func (j *EncodeJob) transition(to State) bool {
	if !canTransition(j.state, to) {
		j.log.Warn("ignored invalid state transition %s -> %s", j.state, to)
		return false
	}
	j.log.Debug("state %s -> %s", j.state, to)
	j.state = to
	return true
}

// start launches cmd and records the Running transition. On failure the job
// ends in StateSpawnError, or StateFailed if it was killed before starting.
func (j *EncodeJob) start(cmd *exec.Cmd) error {
	j.mu.Lock()
	j.cmd = cmd
	j.mu.Unlock()

	// A job killed while spawned has its context canceled, so Start refuses
	// and releases the pipe descriptors.
	if err := cmd.Start(); err != nil {
		j.mu.Lock()
		abandoned := j.abandoned
		j.mu.Unlock()
		if abandoned {
			return j.terminate(StateFailed, fmt.Errorf("%w: encoder not started: %w", ErrCanceled, err))
		}
		return j.terminate(StateSpawnError, fmt.Errorf("%w: %w", ErrEncoderSpawnFailed, err))
	}

	j.mu.Lock()
	j.startedAt = time.Now()
	j.transition(StateRunning)
	j.mu.Unlock()
	return nil
}

// fail ends a job that never reached the encoder (e.g. the input file could
// not be written) or whose output proved unusable.
func (j *EncodeJob) fail(err error) error {
	return j.terminate(StateFailed, err)
}

// finish classifies the result of cmd.Wait and ends the job.
func (j *EncodeJob) finish(ctx context.Context, waitErr error) error {
	j.mu.Lock()
	abandoned := j.abandoned
	if j.cmd != nil && j.cmd.ProcessState != nil {
		j.exitCode = j.cmd.ProcessState.ExitCode()
	}
	j.mu.Unlock()

	if waitErr == nil {
		return j.terminate(StateSucceeded, nil)
	}

	var err error
	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("%w: %w", ErrEncoderTimeout, waitErr)
	case abandoned || errors.Is(ctx.Err(), context.Canceled):
		err = fmt.Errorf("%w: %w", ErrCanceled, waitErr)
	case errors.As(waitErr, &exitErr):
		err = &ExitError{Code: exitErr.ExitCode(), Stderr: j.stderr.String()}
	case errors.Is(waitErr, ErrEncoderIO):
		err = waitErr
	default:
		err = ioError("wait", waitErr)
	}
	return j.terminate(StateFailed, err)
}

// terminate records the terminal state and runs the exit hook exactly once.
func (j *EncodeJob) terminate(to State, err error) error {
	j.mu.Lock()
	if j.state.Terminal() {
		j.mu.Unlock()
		return err
	}
	j.transition(to)
	j.cause = err
	j.endedAt = time.Now()
	if j.startedAt.IsZero() {
		j.startedAt = j.endedAt
	}
	hook := j.onExit
	j.mu.Unlock()

	if hook != nil {
		hook(j)
	}
	return err
}

// kill terminates a running process. Further output is discarded and the
// job is classified as canceled when reaped. A job that has not started yet
// is marked so it never starts.
func (j *EncodeJob) kill() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state == StateSpawned {
		j.abandoned = true
		if j.cancel != nil {
			j.cancel()
		}
		return
	}
	if j.state != StateRunning || j.cmd == nil || j.cmd.Process == nil {
		return
	}
	j.abandoned = true
	if err := j.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		j.log.Warn("failed to kill encoder: %v", err)
	}
}

// statusLabel maps the terminal state and cause to a metrics label.
func (j *EncodeJob) statusLabel() string {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch {
	case j.state == StateSucceeded:
		return "succeeded"
	case j.state == StateSpawnError:
		return "spawn_error"
	case errors.Is(j.cause, ErrEncoderTimeout):
		return "timeout"
	case errors.Is(j.cause, ErrCanceled):
		return "canceled"
	default:
		return "failed"
	}
}

// tailBuffer keeps the last limit bytes written to it. Writes never fail, so
// the encoder is never blocked on its diagnostic stream.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
	total int64
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total += int64(len(p))
	if len(p) >= b.limit {
		b.buf = append(b.buf[:0], p[len(p)-b.limit:]...)
		return len(p), nil
	}
	if over := len(b.buf) + len(p) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// Total returns the number of bytes ever written.
func (b *tailBuffer) Total() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}
