package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// doStreamRequest sends one streaming request and hands back the open
// response body. Every failure is returned as a classified *Error so the
// retry loop can decide whether another attempt makes sense.
func (p *Provider) doStreamRequest(ctx context.Context, req *geminiRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Type: ErrInvalidRequest, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.streamGenerateURL(), bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Type: ErrInvalidRequest, Message: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Type: ErrTransport, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, p.parseError(resp)
	}

	return resp.Body, nil
}

func (p *Provider) streamGenerateURL() string {
	return fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s",
		strings.TrimRight(p.baseURL, "/"), p.model, url.QueryEscape(p.apiKey))
}
