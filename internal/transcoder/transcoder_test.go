package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"voice-transcoder/internal/filesystem"
	"voice-transcoder/internal/payload"
)

// echoScript copies stdin to stdout, standing in for the encoder in pipe mode.
const echoScript = "exec cat\n"

// copyScript copies the -i file to the last argument, standing in for the
// encoder in staged mode.
const copyScript = `in=""
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -i) in="$2"; shift ;;
  esac
  out="$1"
  shift
done
cp "$in" "$out"
`

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script encoders require a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("Failed to write fake encoder: %v", err)
	}
	return path
}

func testAudio(n int) *payload.RawAudio {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return &payload.RawAudio{Data: data}
}

func newTestTranscoder(t *testing.T, cfg Config) *Transcoder {
	t.Helper()
	trans, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return trans
}

func readAndClose(t *testing.T, out *Output) ([]byte, error) {
	t.Helper()
	data, readErr := io.ReadAll(out)
	closeErr := out.Close()
	if readErr != nil {
		return data, readErr
	}
	return data, closeErr
}

func assertNoArtifacts(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read temp dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "input_") || strings.HasPrefix(e.Name(), "output_") {
			t.Errorf("Temp artifact left behind: %s", e.Name())
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNew(t *testing.T) {
	trans := newTestTranscoder(t, Config{})

	if trans.Mode() != ModePipe {
		t.Errorf("Expected default mode pipe, got %s", trans.Mode())
	}
	if trans.Encoder() != DefaultEncoder {
		t.Errorf("Expected encoder %s, got %s", DefaultEncoder, trans.Encoder())
	}
	if trans.Timeout() != DefaultTimeout {
		t.Errorf("Expected timeout %v, got %v", DefaultTimeout, trans.Timeout())
	}
	if trans.Slots() < 1 {
		t.Errorf("Expected at least one slot, got %d", trans.Slots())
	}
	if trans.jobs == nil {
		t.Error("Expected jobs map to be initialized")
	}
}

func TestNew_Modes(t *testing.T) {
	tests := []struct {
		mode        Mode
		contentType string
	}{
		{ModePipe, ContentTypePipe},
		{ModeStaged, ContentTypeStaged},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			trans := newTestTranscoder(t, Config{Mode: tt.mode, MaxConcurrent: 3})
			if trans.Mode() != tt.mode {
				t.Errorf("Expected mode %s, got %s", tt.mode, trans.Mode())
			}
			if trans.ContentType() != tt.contentType {
				t.Errorf("Expected content type %q, got %q", tt.contentType, trans.ContentType())
			}
			if trans.Slots() != 3 {
				t.Errorf("Expected 3 slots, got %d", trans.Slots())
			}
		})
	}

	if _, err := New(Config{Mode: "carrier-pigeon"}); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"pipe", ModePipe, false},
		{" Staged ", ModeStaged, false},
		{"PIPE", ModePipe, false},
		{"", "", true},
		{"file", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPipeArgs(t *testing.T) {
	got := strings.Join(pipeArgs(), " ")
	want := "-hide_banner -loglevel error -f s16le -ar 24000 -ac 1 -i pipe:0 -c:a libopus -b:a 16k -f ogg pipe:1"
	if got != want {
		t.Errorf("pipeArgs()\n got: %s\nwant: %s", got, want)
	}
}

func TestStagedArgs(t *testing.T) {
	args := stagedArgs("/tmp/input_x.pcm", "/tmp/output_x.ogg")
	joined := strings.Join(args, " ")

	for _, fragment := range []string{
		"-y",
		"-f s16le -ar 24000 -ac 1 -i /tmp/input_x.pcm",
		"-c:a libopus -b:a 16k",
		"-application voip",
		"-f ogg /tmp/output_x.ogg",
	} {
		if !strings.Contains(joined, fragment) {
			t.Errorf("Expected staged args to contain %q, got %s", fragment, joined)
		}
	}

	if args[len(args)-1] != "/tmp/output_x.ogg" {
		t.Errorf("Expected output path last, got %s", args[len(args)-1])
	}
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		allowed  bool
	}{
		{StateSpawned, StateRunning, true},
		{StateSpawned, StateSpawnError, true},
		{StateSpawned, StateFailed, true},
		{StateSpawned, StateSucceeded, false},
		{StateRunning, StateSucceeded, true},
		{StateRunning, StateFailed, true},
		{StateRunning, StateSpawnError, false},
		{StateSucceeded, StateFailed, false},
		{StateFailed, StateRunning, false},
		{StateSpawnError, StateRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if got := canTransition(tt.from, tt.to); got != tt.allowed {
				t.Errorf("canTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestStateTerminal(t *testing.T) {
	for _, s := range []State{StateSucceeded, StateFailed, StateSpawnError} {
		if !s.Terminal() {
			t.Errorf("Expected %s to be terminal", s)
		}
	}
	for _, s := range []State{StateSpawned, StateRunning} {
		if s.Terminal() {
			t.Errorf("Expected %s to be non-terminal", s)
		}
	}
	if State(42).String() != "unknown(42)" {
		t.Errorf("Unexpected string for unknown state: %s", State(42))
	}
}

func TestJobTerminateRunsHookOnce(t *testing.T) {
	job := newJob(ModePipe, 0)
	calls := 0
	job.onExit = func(*EncodeJob) { calls++ }

	first := errors.New("first")
	_ = job.fail(first)
	_ = job.fail(errors.New("second"))

	if calls != 1 {
		t.Errorf("Expected exit hook to run once, ran %d times", calls)
	}
	if job.State() != StateFailed {
		t.Errorf("Expected state failed, got %s", job.State())
	}
	if !errors.Is(job.Err(), first) {
		t.Errorf("Expected first cause to be kept, got %v", job.Err())
	}
}

func TestNewJobID_Unique(t *testing.T) {
	const n = 1000
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		id := NewJobID()
		if seen[id] {
			t.Fatalf("Duplicate job id %s", id)
		}
		if strings.ContainsAny(id, `/\`) {
			t.Fatalf("Job id %q is not path safe", id)
		}
		seen[id] = true
	}
}

func TestTailBuffer(t *testing.T) {
	b := newTailBuffer(8)

	if _, err := b.Write([]byte("hello ")); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Write([]byte("world")); err != nil {
		t.Fatal(err)
	}

	if b.String() != "lo world" {
		t.Errorf("Expected tail %q, got %q", "lo world", b.String())
	}
	if b.Total() != 11 {
		t.Errorf("Expected total 11, got %d", b.Total())
	}

	if _, err := b.Write([]byte("0123456789")); err != nil {
		t.Fatal(err)
	}
	if b.String() != "23456789" {
		t.Errorf("Expected oversized write to keep its tail, got %q", b.String())
	}
}

func TestExitError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &ExitError{Code: 1, Stderr: "bad"})

	if !errors.Is(err, ErrEncoderExitedNonZero) {
		t.Error("Expected ExitError to match ErrEncoderExitedNonZero")
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Errorf("Expected ExitError with code 1, got %v", err)
	}
}

func TestConvert_EmptyAudio(t *testing.T) {
	trans := newTestTranscoder(t, Config{})
	if _, err := trans.Convert(context.Background(), &payload.RawAudio{}); !errors.Is(err, ErrEncoderIO) {
		t.Errorf("Expected ErrEncoderIO for empty audio, got %v", err)
	}
}

func TestConvert_PipeRelaysOutput(t *testing.T) {
	trans := newTestTranscoder(t, Config{Mode: ModePipe, EncoderPath: writeScript(t, echoScript)})
	audio := testAudio(200 * 1024)

	out, err := trans.Convert(context.Background(), audio)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if out.ContentType() != ContentTypePipe {
		t.Errorf("Expected content type %q, got %q", ContentTypePipe, out.ContentType())
	}
	if out.Size() != -1 {
		t.Errorf("Expected unknown size for pipe output, got %d", out.Size())
	}

	data, err := readAndClose(t, out)
	if err != nil {
		t.Fatalf("Unexpected stream error: %v", err)
	}
	if !bytes.Equal(data, audio.Data) {
		t.Errorf("Expected %d relayed bytes, got %d", audio.Len(), len(data))
	}
	if out.Job.State() != StateSucceeded {
		t.Errorf("Expected job succeeded, got %s", out.Job.State())
	}
	if out.Job.Input != pipeInput || out.Job.Output != pipeOutput {
		t.Errorf("Unexpected pipe endpoints %s -> %s", out.Job.Input, out.Job.Output)
	}
	if trans.Active() != 0 {
		t.Errorf("Expected no active jobs, got %d", trans.Active())
	}
}

func TestConvert_SpawnFailure(t *testing.T) {
	for _, mode := range []Mode{ModePipe, ModeStaged} {
		t.Run(string(mode), func(t *testing.T) {
			dir := t.TempDir()
			trans := newTestTranscoder(t, Config{
				Mode:        mode,
				EncoderPath: filepath.Join(dir, "no-such-encoder"),
				TempDir:     dir,
			})

			_, err := trans.Convert(context.Background(), testAudio(4800))
			if !errors.Is(err, ErrEncoderSpawnFailed) {
				t.Fatalf("Expected ErrEncoderSpawnFailed, got %v", err)
			}
			if errors.Is(err, ErrEncoderExitedNonZero) {
				t.Error("Spawn failure must not look like a non-zero exit")
			}
			if trans.Active() != 0 {
				t.Errorf("Expected no active jobs, got %d", trans.Active())
			}
			assertNoArtifacts(t, dir)
		})
	}
}

func TestConvert_NonZeroExit(t *testing.T) {
	script := "cat >/dev/null\necho 'Unknown encoder libopus' >&2\nexit 3\n"

	for _, mode := range []Mode{ModePipe, ModeStaged} {
		t.Run(string(mode), func(t *testing.T) {
			dir := t.TempDir()
			trans := newTestTranscoder(t, Config{
				Mode:        mode,
				EncoderPath: writeScript(t, script),
				TempDir:     dir,
			})

			_, err := trans.Convert(context.Background(), testAudio(4800))
			var exitErr *ExitError
			if !errors.As(err, &exitErr) {
				t.Fatalf("Expected *ExitError, got %v", err)
			}
			if exitErr.Code != 3 {
				t.Errorf("Expected exit code 3, got %d", exitErr.Code)
			}
			if !strings.Contains(exitErr.Stderr, "Unknown encoder") {
				t.Errorf("Expected stderr tail to be captured, got %q", exitErr.Stderr)
			}
			assertNoArtifacts(t, dir)
		})
	}
}

func TestConvert_ChattyStderrDoesNotBlock(t *testing.T) {
	// Far more diagnostic output than a pipe buffer holds.
	script := "i=0\nwhile [ $i -lt 2000 ]; do echo 'frame= progress line padding padding padding' >&2; i=$((i+1)); done\nexec cat\n"
	trans := newTestTranscoder(t, Config{Mode: ModePipe, EncoderPath: writeScript(t, script), StderrLimit: 256})
	audio := testAudio(4800)

	out, err := trans.Convert(context.Background(), audio)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	data, err := readAndClose(t, out)
	if err != nil {
		t.Fatalf("Unexpected stream error: %v", err)
	}
	if !bytes.Equal(data, audio.Data) {
		t.Error("Output does not match input")
	}
	if len(out.Job.Stderr()) > 256 {
		t.Errorf("Expected stderr tail bounded to 256 bytes, got %d", len(out.Job.Stderr()))
	}
}

func TestConvert_PipeNoOutput(t *testing.T) {
	trans := newTestTranscoder(t, Config{Mode: ModePipe, EncoderPath: writeScript(t, "cat >/dev/null\nexit 0\n")})

	_, err := trans.Convert(context.Background(), testAudio(4800))
	if !errors.Is(err, ErrEncoderIO) {
		t.Errorf("Expected ErrEncoderIO when the encoder writes nothing, got %v", err)
	}
}

func TestConvert_PipeAbandonedOutputKillsEncoder(t *testing.T) {
	// Emits a byte, then never exits on its own.
	trans := newTestTranscoder(t, Config{Mode: ModePipe, EncoderPath: writeScript(t, "printf x\nexec sleep 30\n")})

	out, err := trans.Convert(context.Background(), testAudio(4800))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if trans.Active() != 1 {
		t.Errorf("Expected one active job while streaming, got %d", trans.Active())
	}

	start := time.Now()
	err = out.Close()
	if !errors.Is(err, ErrCanceled) {
		t.Errorf("Expected ErrCanceled after abandoning the stream, got %v", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Error("Close took too long to kill the encoder")
	}
	if trans.Active() != 0 {
		t.Errorf("Expected no active jobs, got %d", trans.Active())
	}

	// Close is idempotent.
	if second := out.Close(); !errors.Is(second, ErrCanceled) {
		t.Errorf("Expected repeated Close to return the first result, got %v", second)
	}
}

func TestConvert_Timeout(t *testing.T) {
	for _, mode := range []Mode{ModePipe, ModeStaged} {
		t.Run(string(mode), func(t *testing.T) {
			dir := t.TempDir()
			trans := newTestTranscoder(t, Config{
				Mode:        mode,
				EncoderPath: writeScript(t, "exec sleep 30\n"),
				TempDir:     dir,
				Timeout:     200 * time.Millisecond,
			})

			_, err := trans.Convert(context.Background(), testAudio(4800))
			if !errors.Is(err, ErrEncoderTimeout) {
				t.Fatalf("Expected ErrEncoderTimeout, got %v", err)
			}
			if trans.Active() != 0 {
				t.Errorf("Expected no active jobs, got %d", trans.Active())
			}
			assertNoArtifacts(t, dir)
		})
	}
}

func TestConvert_CallerCanceled(t *testing.T) {
	dir := t.TempDir()
	trans := newTestTranscoder(t, Config{Mode: ModeStaged, EncoderPath: writeScript(t, "exec sleep 30\n"), TempDir: dir})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := trans.Convert(ctx, testAudio(4800))
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("Expected ErrCanceled, got %v", err)
	}
	assertNoArtifacts(t, dir)
}

func TestConvert_StagedProducesFile(t *testing.T) {
	dir := t.TempDir()
	trans := newTestTranscoder(t, Config{Mode: ModeStaged, EncoderPath: writeScript(t, copyScript), TempDir: dir})
	audio := testAudio(48000)

	out, err := trans.Convert(context.Background(), audio)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	if out.Size() != int64(audio.Len()) {
		t.Errorf("Expected size %d, got %d", audio.Len(), out.Size())
	}
	if out.ContentType() != ContentTypeStaged {
		t.Errorf("Expected content type %q, got %q", ContentTypeStaged, out.ContentType())
	}
	if !strings.HasPrefix(filepath.Base(out.Job.Input), "input_"+out.Job.ID) {
		t.Errorf("Unexpected input path %s", out.Job.Input)
	}
	if !strings.HasPrefix(filepath.Base(out.Job.Output), "output_"+out.Job.ID) {
		t.Errorf("Unexpected output path %s", out.Job.Output)
	}

	// Artifacts live until the output is closed.
	for _, p := range []string{out.Job.Input, out.Job.Output} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("Expected %s to exist while streaming: %v", p, err)
		}
	}

	data, err := readAndClose(t, out)
	if err != nil {
		t.Fatalf("Unexpected stream error: %v", err)
	}
	if !bytes.Equal(data, audio.Data) {
		t.Error("Staged output does not match input")
	}
	assertNoArtifacts(t, dir)
}

func TestConvert_StagedCloseBeforeEOF(t *testing.T) {
	dir := t.TempDir()
	trans := newTestTranscoder(t, Config{Mode: ModeStaged, EncoderPath: writeScript(t, copyScript), TempDir: dir})

	out, err := trans.Convert(context.Background(), testAudio(48000))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	buf := make([]byte, 1)
	if n, err := out.Read(buf); n != 1 || err != nil {
		t.Fatalf("Expected to read 1 byte, got n=%d err=%v", n, err)
	}
	if err := out.Close(); err != nil {
		t.Errorf("Expected Close to succeed, got %v", err)
	}

	assertNoArtifacts(t, dir)
	if active := trans.Active(); active != 0 {
		t.Errorf("Expected no active jobs, got %d", active)
	}
	if err := trans.slots.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("Expected slot to be free after Close, got %v", err)
	}
	trans.slots.Release(1)
}

func TestStagedArtifactsAreSweepable(t *testing.T) {
	dir := t.TempDir()
	id := NewJobID()
	old := time.Now().Add(-time.Hour)

	for _, a := range []struct{ kind, ext string }{{filesystem.KindInput, ".pcm"}, {filesystem.KindOutput, ".ogg"}} {
		artifact, err := filesystem.NewTempArtifact(dir, a.kind, id, a.ext)
		if err != nil {
			t.Fatalf("NewTempArtifact() error = %v", err)
		}
		if err := os.WriteFile(artifact.Path(), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(artifact.Path(), old, old); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := filesystem.Sweep(dir, 15*time.Minute)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected both job artifacts to be swept, got %d", removed)
	}
}

func TestConvert_StagedConcurrentNoCollisions(t *testing.T) {
	dir := t.TempDir()
	trans := newTestTranscoder(t, Config{
		Mode:          ModeStaged,
		EncoderPath:   writeScript(t, copyScript),
		TempDir:       dir,
		MaxConcurrent: 4,
	})

	const n = 12
	var wg sync.WaitGroup
	errs := make([]error, n)
	ids := make([]string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			audio := &payload.RawAudio{Data: bytes.Repeat([]byte{byte(i)}, 2400+i)}

			out, err := trans.Convert(context.Background(), audio)
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = out.Job.ID

			data, err := readAndClose(t, out)
			if err != nil {
				errs[i] = err
				return
			}
			if !bytes.Equal(data, audio.Data) {
				errs[i] = fmt.Errorf("request %d received another request's output", i)
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i, err := range errs {
		if err != nil {
			t.Errorf("Request %d failed: %v", i, err)
			continue
		}
		if seen[ids[i]] {
			t.Errorf("Duplicate job id %s", ids[i])
		}
		seen[ids[i]] = true
	}
	assertNoArtifacts(t, dir)
}

func TestConvert_SlotLimit(t *testing.T) {
	trans := newTestTranscoder(t, Config{Mode: ModePipe, EncoderPath: writeScript(t, echoScript), MaxConcurrent: 1})

	held, err := trans.Convert(context.Background(), testAudio(4800))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := trans.Convert(ctx, testAudio(4800)); !errors.Is(err, ErrCanceled) {
		t.Errorf("Expected ErrCanceled while waiting for a slot, got %v", err)
	}

	if _, err := readAndClose(t, held); err != nil {
		t.Fatalf("Unexpected stream error: %v", err)
	}

	out, err := trans.Convert(context.Background(), testAudio(4800))
	if err != nil {
		t.Fatalf("Expected slot to be free after Close, got %v", err)
	}
	_, _ = readAndClose(t, out)
}

func TestCleanup_KillsRunningJobs(t *testing.T) {
	dir := t.TempDir()
	trans := newTestTranscoder(t, Config{Mode: ModeStaged, EncoderPath: writeScript(t, "exec sleep 30\n"), TempDir: dir})

	errCh := make(chan error, 1)
	go func() {
		_, err := trans.Convert(context.Background(), testAudio(4800))
		errCh <- err
	}()

	waitFor(t, func() bool {
		trans.jobsMu.Lock()
		defer trans.jobsMu.Unlock()
		for _, job := range trans.jobs {
			if job.State() == StateRunning {
				return true
			}
		}
		return false
	})

	trans.Cleanup()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrCanceled) {
			t.Errorf("Expected ErrCanceled, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Cleanup did not stop the running encoder")
	}
	assertNoArtifacts(t, dir)

	if _, err := trans.Convert(context.Background(), testAudio(4800)); !errors.Is(err, ErrCanceled) {
		t.Errorf("Expected Convert after Cleanup to fail with ErrCanceled, got %v", err)
	}
}

// gatedTransport holds a job between registration and spawn.
type gatedTransport struct {
	Transport
	entered chan struct{}
	release chan struct{}
}

func (g *gatedTransport) Encode(ctx context.Context, job *EncodeJob, audio *payload.RawAudio) (*Output, error) {
	close(g.entered)
	<-g.release
	return g.Transport.Encode(ctx, job, audio)
}

func TestCleanup_StopsJobsNotYetStarted(t *testing.T) {
	for _, mode := range []Mode{ModePipe, ModeStaged} {
		t.Run(string(mode), func(t *testing.T) {
			dir := t.TempDir()
			marker := filepath.Join(t.TempDir(), "started")
			script := "touch " + marker + "\n" + copyScript
			if mode == ModePipe {
				script = "touch " + marker + "\n" + echoScript
			}
			trans := newTestTranscoder(t, Config{Mode: mode, EncoderPath: writeScript(t, script), TempDir: dir})
			gate := &gatedTransport{Transport: trans.transport, entered: make(chan struct{}), release: make(chan struct{})}
			trans.transport = gate

			errCh := make(chan error, 1)
			go func() {
				out, err := trans.Convert(context.Background(), testAudio(4800))
				if out != nil {
					_ = out.Close()
				}
				errCh <- err
			}()

			<-gate.entered
			trans.Cleanup()
			close(gate.release)

			select {
			case err := <-errCh:
				if !errors.Is(err, ErrCanceled) {
					t.Errorf("Expected ErrCanceled, got %v", err)
				}
			case <-time.After(10 * time.Second):
				t.Fatal("Convert did not return after Cleanup")
			}

			if _, err := os.Stat(marker); !os.IsNotExist(err) {
				t.Error("Expected encoder not to start after Cleanup")
			}
			if active := trans.Active(); active != 0 {
				t.Errorf("Expected no active jobs, got %d", active)
			}
			assertNoArtifacts(t, dir)
		})
	}
}

func TestJobKillBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := newJob(ModeStaged, 0)
	job.cancel = cancel
	job.kill()

	cmd := exec.CommandContext(ctx, writeScript(t, "exit 0\n"))
	err := job.start(cmd)
	if !errors.Is(err, ErrCanceled) {
		t.Errorf("Expected ErrCanceled, got %v", err)
	}
	if job.State() != StateFailed {
		t.Errorf("Expected state failed, got %s", job.State())
	}
	if cmd.Process != nil {
		t.Error("Expected no process to be started")
	}
	if job.statusLabel() != "canceled" {
		t.Errorf("Expected status label canceled, got %s", job.statusLabel())
	}
}

func TestCheckEncoder_Missing(t *testing.T) {
	trans := newTestTranscoder(t, Config{EncoderPath: filepath.Join(t.TempDir(), "missing")})
	if _, err := trans.CheckEncoder(context.Background()); !errors.Is(err, ErrEncoderSpawnFailed) {
		t.Errorf("Expected ErrEncoderSpawnFailed, got %v", err)
	}
}

func TestCheckEncoder_Fake(t *testing.T) {
	script := `case "$2" in
  -version) echo "ffmpeg version 7.1-test Copyright (c)"; echo "built with gcc" ;;
  -encoders) echo " A....D libopus              libopus Opus" ;;
esac
`
	trans := newTestTranscoder(t, Config{EncoderPath: writeScript(t, script)})

	info, err := trans.CheckEncoder(context.Background())
	if err != nil {
		t.Fatalf("CheckEncoder() error = %v", err)
	}
	if info.Version != "ffmpeg version 7.1-test Copyright (c)" {
		t.Errorf("Unexpected version %q", info.Version)
	}
	if !info.Opus {
		t.Error("Expected libopus to be detected")
	}
}

func TestIntegration_RealEncoder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping encoder integration test in short mode")
	}
	if _, err := exec.LookPath(DefaultEncoder); err != nil {
		t.Skip("ffmpeg not available")
	}

	// One second of 24 kHz mono 16-bit silence.
	silence := &payload.RawAudio{Data: make([]byte, 48000)}

	for _, mode := range []Mode{ModePipe, ModeStaged} {
		t.Run(string(mode), func(t *testing.T) {
			dir := t.TempDir()
			trans := newTestTranscoder(t, Config{Mode: mode, TempDir: dir})

			info, err := trans.CheckEncoder(context.Background())
			if err != nil {
				t.Fatalf("CheckEncoder() error = %v", err)
			}
			if !info.Opus {
				t.Skip("ffmpeg built without libopus")
			}

			out, err := trans.Convert(context.Background(), silence)
			if err != nil {
				t.Fatalf("Convert() error = %v", err)
			}
			data, err := readAndClose(t, out)
			if err != nil {
				t.Fatalf("Unexpected stream error: %v", err)
			}

			if !bytes.HasPrefix(data, []byte("OggS")) {
				t.Error("Expected output to start with an Ogg page")
			}
			if !bytes.Contains(data, []byte("OpusHead")) {
				t.Error("Expected an Opus identification header")
			}
			assertNoArtifacts(t, dir)
		})
	}
}
