package payload

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrMalformedPayload is the client error class for any body that does not
	// carry decodable inline audio.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrBodyTooLarge indicates the body exceeded the configured limit.
	ErrBodyTooLarge = errors.New("request body too large")
)

// MalformedError describes where extraction stopped.
type MalformedError struct {
	// Path is the JSON path that failed validation.
	Path string
	// Reason is a short human readable reason.
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	msg := fmt.Sprintf("malformed payload at %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports ErrMalformedPayload so callers can classify with errors.Is.
func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformedPayload
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

func malformed(path, reason string, err error) error {
	return &MalformedError{Path: path, Reason: reason, Err: err}
}

// Decode parses a JSON body of at most limit bytes. A limit <= 0 disables the
// check.
func Decode(r io.Reader, limit int64) (*ConversionRequest, error) {
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, ErrBodyTooLarge
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	if limit > 0 && int64(len(body)) > limit {
		return nil, ErrBodyTooLarge
	}
	return Parse(body)
}

// Parse decodes a JSON document into a ConversionRequest.
func Parse(body []byte) (*ConversionRequest, error) {
	var req ConversionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, malformed("$", "invalid JSON", err)
	}
	return &req, nil
}

// Extract validates the nested inline-data path and decodes the audio.
func Extract(req *ConversionRequest) (*RawAudio, error) {
	if req == nil || len(req.Candidates) == 0 {
		return nil, malformed("candidates", "missing or empty", nil)
	}

	candidate := req.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return nil, malformed("candidates[0].content", "missing", nil)
	}

	parts := candidate.Content.Parts
	if len(parts) == 0 || parts[0] == nil {
		return nil, malformed("candidates[0].content.parts", "missing or empty", nil)
	}

	blob := parts[0].InlineData
	if blob == nil {
		return nil, malformed("candidates[0].content.parts[0].inlineData", "missing", nil)
	}
	if blob.Data == nil {
		return nil, malformed("candidates[0].content.parts[0].inlineData.data", "missing", nil)
	}
	if *blob.Data == "" {
		return nil, malformed("candidates[0].content.parts[0].inlineData.data", "empty", nil)
	}

	data, err := decodeBase64(*blob.Data)
	if err != nil {
		return nil, malformed("candidates[0].content.parts[0].inlineData.data", "invalid base64", err)
	}

	return &RawAudio{Data: data, MimeType: blob.MimeType}, nil
}

// ExtractBody combines Decode and Extract.
func ExtractBody(r io.Reader, limit int64) (*RawAudio, error) {
	req, err := Decode(r, limit)
	if err != nil {
		return nil, err
	}
	return Extract(req)
}

// decodeBase64 accepts padded standard base64 and its unpadded form.
func decodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	if len(s)%4 != 0 {
		if raw, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
			return raw, nil
		}
	}
	return nil, err
}
