/*
Package streaming delivers encoded audio to HTTP clients.

# Overview

Deliver commits a 200 response for a Source (the transcoder's Output
satisfies it), relays its bytes through a TimeoutWriter and closes the
source on every exit path. Closing is what finalizes the encoder job and
removes staged temp files, so a handler never has to track them itself.

Once Deliver has written the status line nothing else can be reported to
the client. Failures after that point are returned as *TerminatedError and
should only be logged:

	written, err := streaming.Deliver(r.Context(), w, out, config)
	if errors.Is(err, streaming.ErrStreamTerminated) {
		var te *streaming.TerminatedError
		errors.As(err, &te)
		log.Printf("stream ended early (%s) after %d bytes", te.Reason, written)
	}

# Timeouts

TimeoutWriter bounds every chunk write with a connection write deadline
(via http.ResponseController) and cancels the stream when no write succeeds
within IdleTimeout. Writes are split into ChunkSize pieces and flushed so
Ogg pages reach the client as soon as the encoder emits them.

The sentinel errors distinguish why a stream stopped:

	ErrWriteTimeout   // client too slow, or stream idle
	ErrClientGone     // request context canceled
	ErrStreamCanceled // writer closed
*/
package streaming
