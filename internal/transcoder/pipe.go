package transcoder

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"time"

	"voice-transcoder/internal/payload"
)

// waitDelay bounds how long Wait blocks on pipes after the process is gone.
const waitDelay = 5 * time.Second

const pipeReadBuffer = 32 * 1024

type pipeTransport struct {
	encoder string
}

// NewPipeTransport returns a transport that streams through stdin/stdout.
func NewPipeTransport(encoder string) Transport {
	return &pipeTransport{encoder: encoder}
}

func (p *pipeTransport) Mode() Mode          { return ModePipe }
func (p *pipeTransport) ContentType() string { return ContentTypePipe }

func (p *pipeTransport) Encode(ctx context.Context, job *EncodeJob, audio *payload.RawAudio) (*Output, error) {
	job.Input = pipeInput
	job.Output = pipeOutput

	cmd := exec.CommandContext(ctx, p.encoder, pipeArgs()...)
	cmd.WaitDelay = waitDelay
	cmd.Stderr = job.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, job.fail(ioError("stdin pipe", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, job.fail(ioError("stdout pipe", err))
	}

	if err := job.start(cmd); err != nil {
		return nil, err
	}

	writeDone := make(chan error, 1)
	go func() {
		writeDone <- feed(stdin, audio.Data)
	}()

	// Hold the stream back until the encoder proves it can produce output,
	// so early failures still map to a clean error response.
	br := bufio.NewReaderSize(stdout, pipeReadBuffer)
	if _, peekErr := br.Peek(1); peekErr != nil {
		waitErr := reap(cmd, writeDone)
		if waitErr == nil {
			waitErr = errNoOutput
		}
		return nil, job.finish(ctx, waitErr)
	}

	out := &Output{
		Job:         job,
		r:           br,
		contentType: ContentTypePipe,
		size:        -1,
	}
	out.finalize = func(drained bool) error {
		if !drained {
			job.log.Debug("output abandoned before EOF, killing encoder")
			job.kill()
		}
		return job.finish(ctx, reap(cmd, writeDone))
	}
	return out, nil
}

// feed writes the whole buffer and closes stdin to signal end of input.
func feed(stdin io.WriteCloser, data []byte) error {
	_, err := stdin.Write(data)
	if cerr := stdin.Close(); err == nil {
		err = cerr
	}
	return err
}

// reap waits for the process and the stdin writer. A clean exit that left
// the input unconsumed is reported as an I/O error.
func reap(cmd *exec.Cmd, writeDone <-chan error) error {
	waitErr := cmd.Wait()
	writeErr := <-writeDone
	if waitErr == nil && writeErr != nil {
		return ioError("write stdin", writeErr)
	}
	return waitErr
}
