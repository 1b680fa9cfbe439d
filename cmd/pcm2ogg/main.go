package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voice-transcoder/internal/payload"
	"voice-transcoder/internal/transcoder"

	"golang.org/x/term"
)

const (
	// Default timeout for one conversion
	defaultTimeout = 2 * time.Minute
	// Read payload from stdin
	stdinArg = "-"
)

var errTerminalOutput = errors.New("refusing to write binary audio to a terminal (use -o)")

// options are the parsed command line flags.
type options struct {
	mode    transcoder.Mode
	output  string
	input   string
	encoder string
	timeout time.Duration
}

func main() {
	// Create a context that cancels on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if opts.output == "" && isTerminal(stdout) {
		fmt.Fprintf(stderr, "Error: %v\n", errTerminalOutput)
		return 1
	}

	if err := convert(ctx, opts, stdin, stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("pcm2ogg", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr, fs) }

	mode := fs.String("mode", string(transcoder.ModePipe), "transport: pipe or staged")
	output := fs.String("o", "", "output file (default: stdout)")
	encoder := fs.String("encoder", transcoder.DefaultEncoder, "encoder executable")
	timeout := fs.Duration("timeout", defaultTimeout, "maximum encoder run time")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	m, err := transcoder.ParseMode(*mode)
	if err != nil {
		return nil, err
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return nil, fmt.Errorf("expected exactly one input, got %d", fs.NArg())
	}

	return &options{
		mode:    m,
		output:  *output,
		input:   fs.Arg(0),
		encoder: *encoder,
		timeout: *timeout,
	}, nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Convert a generateContent JSON response with inline PCM audio to Ogg/Opus")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: pcm2ogg [flags] <payload.json|->")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Flags:")
	fs.PrintDefaults()
}

func convert(ctx context.Context, opts *options, stdin io.Reader, stdout io.Writer) (err error) {
	in, closeIn, err := openInput(opts.input, stdin)
	if err != nil {
		return err
	}
	defer closeIn()

	audio, err := payload.ExtractBody(in, payload.MaxBodyBytes)
	if err != nil {
		return err
	}

	tempDir, err := os.MkdirTemp("", "pcm2ogg-")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	trans, err := transcoder.New(transcoder.Config{
		Mode:          opts.mode,
		EncoderPath:   opts.encoder,
		TempDir:       tempDir,
		Timeout:       opts.timeout,
		MaxConcurrent: 1,
	})
	if err != nil {
		return err
	}
	defer trans.Cleanup()

	out, err := trans.Convert(ctx, audio)
	if err != nil {
		return err
	}

	dst := stdout
	if opts.output != "" {
		f, createErr := os.Create(opts.output)
		if createErr != nil {
			out.Close()
			return fmt.Errorf("failed to create output: %w", createErr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(opts.output)
			}
		}()
		dst = f
	}

	_, copyErr := io.Copy(dst, out)
	closeErr := out.Close()
	if copyErr != nil {
		return fmt.Errorf("failed to write output: %w", copyErr)
	}
	return closeErr
}

func openInput(name string, stdin io.Reader) (io.Reader, func(), error) {
	if name == stdinArg {
		return stdin, func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
