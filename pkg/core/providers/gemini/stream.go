package gemini

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// Stream yields text deltas from a streamGenerateContent SSE response.
type Stream struct {
	reader   *bufio.Reader
	closer   io.Closer
	err      error
	finished bool
}

// newStream wraps an open HTTP response body.
func newStream(body io.ReadCloser) *Stream {
	return &Stream{
		reader: bufio.NewReader(body),
		closer: body,
	}
}

// streamChunk is one SSE event payload.
type streamChunk struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *streamChunk) textDelta() string {
	if len(c.Candidates) == 0 {
		return ""
	}
	parts := c.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return ""
	}
	return parts[0].Text
}

// Next returns the next non-empty text delta. It returns io.EOF once the
// stream has completed. Malformed or differently shaped events are
// skipped, not surfaced as errors.
func (s *Stream) Next() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.finished {
		return "", io.EOF
	}

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				s.finished = true
				return "", io.EOF
			}
			s.err = err
			return "", err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "" || data == "[DONE]" {
			s.finished = true
			return "", io.EOF
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // skip unparseable events
		}
		delta := chunk.textDelta()
		if delta == "" {
			continue
		}
		return delta, nil
	}
}

// Close releases the underlying response body.
func (s *Stream) Close() error {
	return s.closer.Close()
}
