// Package sse provides an incremental parser for the text/event-stream
// protocol used by the StashQ job-event stream.
//
// The parser is transport-agnostic: the stream connection layer feeds it raw
// chunks as they arrive off the wire, and it emits complete frames as soon as
// their blank-line terminator is buffered. Chunk boundaries may fall anywhere,
// including in the middle of a field name.
package sse

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Frame is a single decoded event-stream frame.
type Frame struct {
	// Event is the event type from the "event:" field. Empty if the frame
	// carried only data lines.
	Event string

	// Data is the frame payload when it is valid JSON. Multi-line data
	// fields are joined with newlines before validation.
	Data json.RawMessage

	// Raw holds the payload text verbatim when it is not valid JSON. The
	// frame is still delivered so subscribers can decide what to do with it.
	Raw string
}

// Parser decodes text/event-stream bytes into frames.
//
// A Parser retains unconsumed bytes and in-progress frame state across Feed
// calls, so the byte source can hand it chunks of any size. It is not safe
// for concurrent use; the stream-reading loop is its only caller.
type Parser struct {
	// buf holds bytes carried over from previous chunks that do not yet end
	// in a newline.
	buf []byte

	// event is the event type of the frame currently being assembled.
	event string

	// data accumulates data lines for the frame currently being assembled.
	data strings.Builder

	// sawField is true once the current frame has at least one field, so a
	// bare blank line between frames does not emit an empty frame.
	sawField bool
}

// NewParser creates a new stream parser.
//
// Returns:
//   - *Parser: An empty parser ready to receive chunks
func NewParser() *Parser {
	return &Parser{}
}

// Feed ingests one chunk of stream bytes and returns the frames completed by
// it, in wire order. A chunk may complete zero frames (partial field), one, or
// many (a burst flushed by the server in a single read).
//
// Parameters:
//   - chunk: Raw bytes as read from the stream body
//
// Returns:
//   - []Frame: Frames whose terminating blank line arrived in this chunk
func (p *Parser) Feed(chunk []byte) []Frame {
	if len(chunk) == 0 {
		return nil
	}
	p.buf = append(p.buf, chunk...)

	var frames []Frame
	for {
		idx := bytes.IndexByte(p.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(p.buf[:idx])
		p.buf = p.buf[idx+1:]
		line = strings.TrimSuffix(line, "\r")

		if frame, ok := p.consumeLine(line); ok {
			frames = append(frames, frame)
		}
	}

	// Compact so a long-lived connection does not pin the full history of
	// the stream in memory.
	if len(p.buf) == 0 {
		p.buf = nil
	}
	return frames
}

// consumeLine processes one complete line and reports whether it terminated a
// frame.
func (p *Parser) consumeLine(line string) (Frame, bool) {
	if line == "" {
		// Blank line: end of frame. Dispatch only if we actually
		// buffered fields, so comment-only traffic emits nothing.
		if !p.sawField {
			return Frame{}, false
		}
		frame := p.finishFrame()
		return frame, true
	}

	if strings.HasPrefix(line, ":") {
		// Comment/heartbeat line, never part of a frame.
		return Frame{}, false
	}

	switch {
	case strings.HasPrefix(line, "event:"):
		p.event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		p.sawField = true
	case strings.HasPrefix(line, "data:"):
		if p.data.Len() > 0 {
			p.data.WriteString("\n")
		}
		p.data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		p.sawField = true
	default:
		// id:, retry: and unknown fields are ignored, but they still
		// count as frame content so a following blank line dispatches.
		p.sawField = true
	}
	return Frame{}, false
}

// finishFrame packages the accumulated fields into a Frame and resets the
// in-progress state. An unparsable payload is preserved as raw text rather
// than dropped.
func (p *Parser) finishFrame() Frame {
	frame := Frame{Event: p.event}
	if p.data.Len() > 0 {
		payload := p.data.String()
		if json.Valid([]byte(payload)) {
			frame.Data = json.RawMessage(payload)
		} else {
			frame.Raw = payload
		}
	}

	p.event = ""
	p.data.Reset()
	p.sawField = false
	return frame
}
