// Package payload extracts raw PCM audio from a generateContent-style
// response body.
//
// The body is untrusted: every level of the
// candidates[0].content.parts[0].inlineData.data path is checked in order, and
// any absence, type mismatch or invalid base64 is reported as a
// MalformedError wrapping ErrMalformedPayload. Nothing in this package
// performs I/O beyond reading the supplied body.
package payload
