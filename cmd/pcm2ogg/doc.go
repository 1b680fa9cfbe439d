// Command pcm2ogg runs the service's conversion pipeline on a local file.
//
// It reads a generateContent-style JSON response, extracts the first
// candidate's inline 24 kHz mono s16le PCM and encodes it to Ogg/Opus with
// ffmpeg, using the same transports as the HTTP service.
//
// Usage:
//
//	pcm2ogg [flags] <payload.json|->
//
// Flags:
//
//	-mode     pipe (default) or staged
//	-o        output file; stdout when omitted
//	-encoder  encoder executable (default: ffmpeg)
//	-timeout  maximum encoder run time (default: 2m)
//
// Audio is never written to an interactive terminal; redirect stdout or
// pass -o instead.
package main
