// Package sse provides an incremental parser for the text/event-stream protocol.
package sse

import (
	"reflect"
	"testing"
)

// feedAll runs a whole input through a fresh parser in one chunk.
func feedAll(t *testing.T, input string) []Frame {
	t.Helper()
	return NewParser().Feed([]byte(input))
}

func TestFeedSingleFrame(t *testing.T) {
	frames := feedAll(t, "event: job_update\ndata: {\"job_id\":\"42\"}\n\n")

	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Event != "job_update" {
		t.Errorf("Event = %q, want %q", frames[0].Event, "job_update")
	}
	if string(frames[0].Data) != `{"job_id":"42"}` {
		t.Errorf("Data = %q, want %q", frames[0].Data, `{"job_id":"42"}`)
	}
	if frames[0].Raw != "" {
		t.Errorf("Raw = %q, want empty for valid JSON", frames[0].Raw)
	}
}

func TestFeedMultipleFramesOneChunk(t *testing.T) {
	input := "event: job_update\ndata: {\"job_id\":\"1\"}\n\n" +
		"event: job_update\ndata: {\"job_id\":\"2\"}\n\n"

	frames := feedAll(t, input)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if string(frames[0].Data) != `{"job_id":"1"}` || string(frames[1].Data) != `{"job_id":"2"}` {
		t.Errorf("frames out of order: %q, %q", frames[0].Data, frames[1].Data)
	}
}

// TestChunkBoundaryInvariance verifies the parser emits the same frame
// sequence no matter where the stream is split, including mid-field.
func TestChunkBoundaryInvariance(t *testing.T) {
	input := ": heartbeat\n" +
		"event: job_update\n" +
		"data: {\"job_id\":\"42\",\"status\":\"failed\"}\n" +
		"\n" +
		"event: connection_ready\n" +
		"data: {\"ok\":true}\n" +
		"\n"

	want := feedAll(t, input)
	if len(want) != 2 {
		t.Fatalf("reference parse: expected 2 frames, got %d", len(want))
	}

	for split := 1; split < len(input); split++ {
		parser := NewParser()
		var got []Frame
		got = append(got, parser.Feed([]byte(input[:split]))...)
		got = append(got, parser.Feed([]byte(input[split:]))...)

		if !reflect.DeepEqual(got, want) {
			t.Fatalf("split at %d: got %+v, want %+v", split, got, want)
		}
	}
}

// TestByteAtATime feeds the stream one byte per call.
func TestByteAtATime(t *testing.T) {
	input := "event: job_update\r\ndata: {\"job_id\":\"7\"}\r\n\r\n"

	parser := NewParser()
	var frames []Frame
	for i := 0; i < len(input); i++ {
		frames = append(frames, parser.Feed([]byte{input[i]})...)
	}

	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Event != "job_update" || string(frames[0].Data) != `{"job_id":"7"}` {
		t.Errorf("unexpected frame: %+v", frames[0])
	}
}

func TestCommentLinesNeverEmit(t *testing.T) {
	frames := feedAll(t, ": keepalive\n\n: another\n\n")
	if len(frames) != 0 {
		t.Fatalf("expected 0 frames from comment-only stream, got %d", len(frames))
	}
}

func TestCommentInsideFrameIgnored(t *testing.T) {
	frames := feedAll(t, "event: job_update\n: keepalive\ndata: {}\n\n")
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if string(frames[0].Data) != "{}" {
		t.Errorf("Data = %q, want {}", frames[0].Data)
	}
}

func TestUnparsablePayloadFallsBackToRaw(t *testing.T) {
	frames := feedAll(t, "event: job_update\ndata: not json at all\n\n")
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Data != nil {
		t.Errorf("Data = %q, want nil for invalid JSON", frames[0].Data)
	}
	if frames[0].Raw != "not json at all" {
		t.Errorf("Raw = %q, want %q", frames[0].Raw, "not json at all")
	}
}

func TestMultiLineDataJoined(t *testing.T) {
	frames := feedAll(t, "data: line one\ndata: line two\n\n")
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Raw != "line one\nline two" {
		t.Errorf("Raw = %q, want joined lines", frames[0].Raw)
	}
}

func TestPartialFrameHeldAcrossFeeds(t *testing.T) {
	parser := NewParser()

	if frames := parser.Feed([]byte("event: job_up")); len(frames) != 0 {
		t.Fatalf("partial field should emit nothing, got %d frames", len(frames))
	}
	if frames := parser.Feed([]byte("date\ndata: {\"job_id\":\"9\"}\n")); len(frames) != 0 {
		t.Fatalf("unterminated frame should emit nothing, got %d frames", len(frames))
	}

	frames := parser.Feed([]byte("\n"))
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame after terminator, got %d", len(frames))
	}
	if frames[0].Event != "job_update" {
		t.Errorf("Event = %q, want %q", frames[0].Event, "job_update")
	}
}

func TestUnknownEventTypePassesThrough(t *testing.T) {
	frames := feedAll(t, "event: quota_warning\ndata: {\"remaining\":3}\n\n")
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Event != "quota_warning" {
		t.Errorf("Event = %q, want passthrough of unknown type", frames[0].Event)
	}
}

func TestIDAndRetryFieldsIgnored(t *testing.T) {
	frames := feedAll(t, "id: 12\nretry: 3000\nevent: job_update\ndata: {}\n\n")
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Event != "job_update" || string(frames[0].Data) != "{}" {
		t.Errorf("unexpected frame: %+v", frames[0])
	}
}

func TestBlankLinesBetweenFramesDoNotEmitEmptyFrames(t *testing.T) {
	frames := feedAll(t, "\n\nevent: job_update\ndata: {}\n\n\n\n")
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
}
