package tts

import (
	"context"
	"encoding/binary"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	edgeWSURL        = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1"
	edgeClientToken  = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"
	edgeOutputFormat = "audio-24khz-48kbitrate-mono-mp3"
	edgeOrigin       = "chrome-extension://jdiccldimpdaibmpdkjnbmckianbfold"
)

// DefaultVoice is used when a request does not name a voice.
const DefaultVoice = "en-US-JennyNeural"

// EdgeProvider implements the TTS Provider interface against the Edge
// read-aloud websocket service. Each Synthesize call opens one connection,
// speaks one sentence and streams the MP3 chunks back as they arrive.
type EdgeProvider struct {
	wsURL  string
	dialer *websocket.Dialer
}

// EdgeOption configures the provider.
type EdgeOption func(*EdgeProvider)

// WithEdgeURL overrides the service endpoint.
func WithEdgeURL(u string) EdgeOption {
	return func(p *EdgeProvider) {
		p.wsURL = u
	}
}

// WithEdgeDialer overrides the websocket dialer.
func WithEdgeDialer(d *websocket.Dialer) EdgeOption {
	return func(p *EdgeProvider) {
		p.dialer = d
	}
}

// NewEdge creates a new Edge TTS provider.
func NewEdge(opts ...EdgeOption) *EdgeProvider {
	p := &EdgeProvider{
		wsURL:  edgeWSURL,
		dialer: websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *EdgeProvider) Name() string {
	return "edge"
}

// Synthesize sends the audio config and SSML frames and returns a stream
// fed by a background reader. A failure after the connection is up only
// truncates the stream; the cause is recorded on it, never returned here.
func (p *EdgeProvider) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisStream, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("empty synthesis text")
	}
	voice := req.Voice
	if voice == "" {
		voice = DefaultVoice
	}

	u := fmt.Sprintf("%s?TrustedClientToken=%s&ConnectionId=%s", p.wsURL, edgeClientToken, connectionID())
	header := http.Header{}
	header.Set("Origin", edgeOrigin)

	conn, _, err := p.dialer.DialContext(ctx, u, header)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}

	ts := edgeTimestamp()
	if err := conn.WriteMessage(websocket.TextMessage, speechConfigFrame(ts)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send speech config: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, ssmlFrame(connectionID(), ts, voice, text)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send ssml: %w", err)
	}

	stream := NewSynthesisStream()

	// Read frames in background until the service signals turn.end.
	go func() {
		defer stream.FinishSending()
		defer conn.Close()

		for {
			select {
			case <-ctx.Done():
				stream.SetError(ctx.Err())
				return
			case <-stream.done:
				return
			default:
			}

			msgType, frame, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					return
				}
				stream.SetError(err)
				return
			}

			switch msgType {
			case websocket.BinaryMessage:
				payload, ok := audioPayload(frame)
				if !ok || len(payload) == 0 {
					continue
				}
				if !stream.Send(payload) {
					return
				}

			case websocket.TextMessage:
				if frameHasPath(string(frame), "turn.end") {
					return
				}
			}
		}
	}()

	return stream, nil
}

// connectionID returns the dashless hex id the service expects.
func connectionID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func edgeTimestamp() string {
	return time.Now().UTC().Format("Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")
}

func speechConfigFrame(ts string) []byte {
	var b strings.Builder
	b.WriteString("X-Timestamp:" + ts + "\r\n")
	b.WriteString("Content-Type:application/json; charset=utf-8\r\n")
	b.WriteString("Path:speech.config\r\n")
	b.WriteString("\r\n")
	b.WriteString(`{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},"outputFormat":"` + edgeOutputFormat + `"}}}}`)
	return []byte(b.String())
}

func ssmlFrame(requestID, ts, voice, text string) []byte {
	ssml := fmt.Sprintf(
		"<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'>"+
			"<voice name='%s'><prosody pitch='+0Hz' rate='+0%%' volume='+0%%'>%s</prosody></voice></speak>",
		voice, html.EscapeString(text))

	var b strings.Builder
	b.WriteString("X-RequestId:" + requestID + "\r\n")
	b.WriteString("Content-Type:application/ssml+xml\r\n")
	b.WriteString("X-Timestamp:" + ts + "\r\n")
	b.WriteString("Path:ssml\r\n")
	b.WriteString("\r\n")
	b.WriteString(ssml)
	return []byte(b.String())
}

// audioPayload splits a binary service frame into header and payload: two
// big-endian length bytes, the header text, then the raw audio. Frames
// whose header is not an audio path carry no payload for us.
func audioPayload(frame []byte) ([]byte, bool) {
	if len(frame) < 2 {
		return nil, false
	}
	n := int(binary.BigEndian.Uint16(frame[:2]))
	if 2+n > len(frame) {
		return nil, false
	}
	if !frameHasPath(string(frame[2:2+n]), "audio") {
		return nil, false
	}
	return frame[2+n:], true
}

func frameHasPath(header, path string) bool {
	return strings.Contains(header, "Path:"+path)
}
