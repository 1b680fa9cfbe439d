package transcoder

import (
	"context"
	"errors"
	"os"
	"os/exec"

	"voice-transcoder/internal/filesystem"
	"voice-transcoder/internal/payload"
)

type stagedTransport struct {
	encoder string
	tempDir string
}

// NewStagedTransport returns a transport that stages input and output as
// temp files under tempDir (the OS temp dir when empty).
func NewStagedTransport(encoder, tempDir string) Transport {
	return &stagedTransport{encoder: encoder, tempDir: tempDir}
}

func (s *stagedTransport) Mode() Mode          { return ModeStaged }
func (s *stagedTransport) ContentType() string { return ContentTypeStaged }

func (s *stagedTransport) Encode(ctx context.Context, job *EncodeJob, audio *payload.RawAudio) (_ *Output, err error) {
	in, err := filesystem.NewTempArtifact(s.tempDir, filesystem.KindInput, job.ID, ".pcm")
	if err != nil {
		return nil, job.fail(ioError("reserve input", err))
	}
	out, err := filesystem.NewTempArtifact(s.tempDir, filesystem.KindOutput, job.ID, ".ogg")
	if err != nil {
		_ = in.Remove()
		return nil, job.fail(ioError("reserve output", err))
	}
	job.Input = in.Path()
	job.Output = out.Path()

	handedOff := false
	defer func() {
		if !handedOff {
			filesystem.RemoveAll(in, out)
		}
	}()

	if err := writeExclusive(in.Path(), audio.Data); err != nil {
		return nil, job.fail(ioError("write input", err))
	}

	cmd := exec.CommandContext(ctx, s.encoder, stagedArgs(in.Path(), out.Path())...)
	cmd.WaitDelay = waitDelay
	cmd.Stdout = job.stderr
	cmd.Stderr = job.stderr

	if err := job.start(cmd); err != nil {
		return nil, err
	}
	if err := job.finish(ctx, cmd.Wait()); err != nil {
		return nil, err
	}

	f, err := os.Open(out.Path())
	if err != nil {
		return nil, ioError("open output", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, ioError("stat output", err)
	}
	if info.Size() == 0 {
		_ = f.Close()
		return nil, errNoOutput
	}

	handedOff = true
	return &Output{
		Job:         job,
		r:           f,
		contentType: ContentTypeStaged,
		size:        info.Size(),
		finalize: func(bool) error {
			if err := f.Close(); err != nil {
				job.log.Warn("failed to close staged output: %v", err)
			}
			filesystem.RemoveAll(in, out)
			return nil
		},
	}, nil
}

// writeExclusive creates path, refusing to reuse an existing file, and
// writes data fully before returning.
func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	_, werr := f.Write(data)
	cerr := f.Close()
	return errors.Join(werr, cerr)
}
