package transcoder

import (
	"strconv"

	"voice-transcoder/internal/payload"
)

const (
	opusCodec   = "libopus"
	opusBitrate = "16k"
	container   = "ogg"

	pipeInput  = "pipe:0"
	pipeOutput = "pipe:1"
)

// Content types advertised for each transport.
const (
	ContentTypePipe   = "audio/ogg"
	ContentTypeStaged = "audio/ogg; codecs=opus"
)

func diagnosticArgs() []string {
	return []string{"-hide_banner", "-loglevel", "error"}
}

func inputArgs(src string) []string {
	return []string{
		"-f", payload.SampleFormat,
		"-ar", strconv.Itoa(payload.SampleRate),
		"-ac", strconv.Itoa(payload.Channels),
		"-i", src,
	}
}

func outputArgs() []string {
	return []string{
		"-c:a", opusCodec,
		"-b:a", opusBitrate,
	}
}

// pipeArgs reads PCM from stdin and writes Ogg to stdout.
func pipeArgs() []string {
	args := diagnosticArgs()
	args = append(args, inputArgs(pipeInput)...)
	args = append(args, outputArgs()...)
	args = append(args, "-f", container, pipeOutput)
	return args
}

// stagedArgs reads and writes files. The voip application hint tunes Opus
// for speech and -y lets the encoder replace a pre-created output path.
func stagedArgs(in, out string) []string {
	args := diagnosticArgs()
	args = append(args, "-y")
	args = append(args, inputArgs(in)...)
	args = append(args, outputArgs()...)
	args = append(args, "-application", "voip", "-f", container, out)
	return args
}
