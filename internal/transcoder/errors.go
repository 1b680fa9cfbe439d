package transcoder

import (
	"errors"
	"fmt"
)

// Sentinel errors for encoder failures. All of them are server-side errors.
var (
	// ErrEncoderSpawnFailed indicates the encoder process could not be
	// started (executable missing, permission denied, bad working dir).
	ErrEncoderSpawnFailed = errors.New("encoder spawn failed")

	// ErrEncoderExitedNonZero matches any *ExitError.
	ErrEncoderExitedNonZero = errors.New("encoder exited with non-zero status")

	// ErrEncoderIO indicates a pipe or temp file failure while feeding the
	// encoder or collecting its output.
	ErrEncoderIO = errors.New("encoder I/O error")

	// ErrEncoderTimeout indicates the job exceeded its deadline and was killed.
	ErrEncoderTimeout = errors.New("encoder timed out")

	// ErrCanceled indicates the caller went away before the job finished.
	ErrCanceled = errors.New("conversion canceled")
)

// ExitError reports an encoder that ran and exited unsuccessfully.
type ExitError struct {
	Code int
	// Stderr is the tail of the encoder's diagnostic output.
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("encoder exited with code %d", e.Code)
}

// Is makes errors.Is(err, ErrEncoderExitedNonZero) hold for every ExitError.
func (e *ExitError) Is(target error) bool {
	return target == ErrEncoderExitedNonZero
}

func ioError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrEncoderIO, op, err)
}

var errNoOutput = fmt.Errorf("%w: encoder produced no output", ErrEncoderIO)
