// Package transcoder converts raw PCM to Ogg/Opus by supervising an FFmpeg
// child process per request.
//
// It supports:
//   - Pipe transport: PCM written to the encoder's stdin, Ogg read from its
//     stdout, no disk I/O
//   - Staged transport: PCM and Ogg materialized as job-owned temp files so
//     the muxer can write accurate duration metadata
//   - An explicit per-job state machine (Spawned, Running, Succeeded, Failed,
//     SpawnError) that drives metrics, slot release and cleanup
//   - Bounded concurrency and a per-job timeout with forced termination
//
// FFmpeg must be installed and resolvable on PATH, or configured with an
// absolute path.
package transcoder
