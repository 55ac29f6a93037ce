package stream

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/extectick/appeals-backend/internal/core/domain"
)

// Frames follow the SSE convention: a "data:" line terminated by a blank
// line. The payload is either a JSON-encoded envelope or a bare sentinel
// word; clients only parse payloads that look like a JSON object.
const (
	SentinelConnected = "connected"
	SentinelKeepalive = "keepalive"
)

var (
	framePrefix = []byte("data: ")
	frameSuffix = []byte("\n\n")

	// FrameConnected is sent once, immediately after a stream opens.
	FrameConnected = SentinelFrame(SentinelConnected)

	// FrameKeepalive is sent on a fixed interval to defeat idle-connection
	// timeouts on proxies between the server and the client.
	FrameKeepalive = SentinelFrame(SentinelKeepalive)
)

// SentinelFrame encodes a non-data frame used for connection health.
func SentinelFrame(word string) []byte {
	frame := make([]byte, 0, len(framePrefix)+len(word)+len(frameSuffix))
	frame = append(frame, framePrefix...)
	frame = append(frame, word...)
	frame = append(frame, frameSuffix...)
	return frame
}

// EncodeEnvelope serializes an envelope into a single SSE frame. The
// broadcaster calls this once per publish, never per connection.
func EncodeEnvelope(envelope domain.Envelope) ([]byte, error) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(framePrefix) + len(payload) + len(frameSuffix))
	buf.Write(framePrefix)
	buf.Write(payload)
	buf.Write(frameSuffix)
	return buf.Bytes(), nil
}
