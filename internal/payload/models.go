package payload

import "time"

// Fixed input format produced by the upstream audio model.
const (
	SampleRate     = 24000
	Channels       = 1
	BytesPerSample = 2
	SampleFormat   = "s16le"
)

// MaxBodyBytes caps the accepted request body size.
const MaxBodyBytes int64 = 50 << 20

// ConversionRequest is the subset of a generateContent response that carries
// inline audio.
type ConversionRequest struct {
	Candidates []*Candidate `json:"candidates"`
}

// Candidate is a single response candidate
type Candidate struct {
	Content *Content `json:"content"`
}

// Content holds the parts of a candidate
type Content struct {
	Role  string  `json:"role,omitempty"`
	Parts []*Part `json:"parts"`
}

// Part is a single piece of content
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData"`
}

// Blob represents inline binary data. Data is base64 encoded; a nil pointer
// means the field was absent.
type Blob struct {
	MimeType string  `json:"mimeType,omitempty"`
	Data     *string `json:"data"`
}

// RawAudio is decoded PCM in the fixed input format.
type RawAudio struct {
	Data     []byte
	MimeType string
}

// Len returns the number of PCM bytes.
func (a *RawAudio) Len() int {
	return len(a.Data)
}

// Duration returns the playback length implied by the fixed format.
func (a *RawAudio) Duration() time.Duration {
	bytesPerSecond := SampleRate * Channels * BytesPerSample
	return time.Duration(len(a.Data)) * time.Second / time.Duration(bytesPerSecond)
}
