// Package sse implements an incremental Server-Sent-Events parser. It is a
// pure state machine: it owns a trailing buffer, accepts byte chunks in any
// split, and emits complete events in the order their terminating blank
// line arrived — matching the upstream Gemini/Vertex "alt=sse" wire format.
//
// Unlike a bufio.Scanner-over-io.Reader approach (the shape used elsewhere
// in this codebase's ancestry for reading SSE line-by-line off a live
// response body), Parser takes ownership of nothing but its own buffer: it
// never reads from a connection itself, so a streaming transport can feed
// it chunks exactly as they arrive off the wire, including chunks that
// split an event mid-line.
package sse

import (
	"bytes"
	"encoding/json"
	"regexp"
)

var eventSeparator = regexp.MustCompile(`\r?\n\r?\n`)

// Event is one parsed SSE event whose data payload parsed as JSON. Err is
// set only for a synthetic terminal event a transport constructs itself
// (never by the parser) to carry a connection failure down the same
// channel ordinary events travel on.
type Event struct {
	ID    string
	Event string
	Retry string
	Data  any
	Err   error
}

// Done reports whether ev marks the end of the stream: either the
// canonical {"done": true} shape this parser produces for a literal
// "[DONE]" payload, or a raw "[DONE]" string payload (compatibility with
// callers that forward the literal SSE text unparsed).
func (ev Event) Done() bool {
	if s, ok := ev.Data.(string); ok && s == "[DONE]" {
		return true
	}
	if m, ok := ev.Data.(map[string]any); ok {
		if done, ok := m["done"].(bool); ok && done {
			return true
		}
	}
	return false
}

// doneEvent is what we actually emit for a literal "data: [DONE]" line:
// surfaced as {done: true} rather than forwarding the sentinel string.
func doneEvent() Event {
	return Event{Data: map[string]any{"done": true}}
}

// Parser is a stateful incremental SSE parser. The zero value is ready to
// use. It is not safe for concurrent use — each streaming worker owns
// exactly one Parser.
type Parser struct {
	buffer []byte
}

// ParseChunk feeds the next chunk of bytes and returns every event that
// chunk completed. Malformed JSON in a data: line is silently dropped —
// never fatal. ParseChunk never blocks and never retains a reference to
// input beyond what it copies into its own trailing buffer.
func (p *Parser) ParseChunk(input []byte) []Event {
	p.buffer = append(p.buffer, input...)

	var events []Event
	for {
		loc := eventSeparator.FindIndex(p.buffer)
		if loc == nil {
			break
		}
		candidate := p.buffer[:loc[0]]
		p.buffer = p.buffer[loc[1]:]

		if ev, ok := parseEvent(candidate); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Finalize parses any remaining buffered bytes as one last candidate event
// (the stream closed without a trailing blank line) and clears the buffer.
func (p *Parser) Finalize() []Event {
	if len(p.buffer) == 0 {
		return nil
	}
	candidate := p.buffer
	p.buffer = nil

	if ev, ok := parseEvent(candidate); ok {
		return []Event{ev}
	}
	return nil
}

// parseEvent splits one candidate block on lines, extracts recognized SSE
// fields, and returns (event, true) only if a data field parsed as JSON.
func parseEvent(candidate []byte) (Event, bool) {
	lines := bytes.Split(candidate, []byte("\n"))

	var id, event, retry string
	var dataLines []string

	for _, rawLine := range lines {
		line := bytes.TrimRight(rawLine, "\r")
		if len(line) == 0 {
			continue
		}

		field, value, ok := splitField(line)
		if !ok {
			continue
		}

		switch field {
		case "data":
			dataLines = append(dataLines, value)
		case "event":
			event = value
		case "id":
			id = value
		case "retry":
			retry = value
		}
	}

	if len(dataLines) == 0 {
		return Event{}, false
	}

	payload := dataLines[0]
	if len(dataLines) > 1 {
		payload = joinLines(dataLines)
	}

	if payload == "[DONE]" {
		ev := doneEvent()
		ev.ID, ev.Event, ev.Retry = id, event, retry
		return ev, true
	}

	var parsed any
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return Event{}, false
	}

	return Event{ID: id, Event: event, Retry: retry, Data: parsed}, true
}

// splitField splits a line at the first ": " into field/value, per the SSE
// spec. A line with no ": " (or one that's only a field name) is ignored.
func splitField(line []byte) (field, value string, ok bool) {
	idx := bytes.Index(line, []byte(": "))
	if idx < 0 {
		return "", "", false
	}
	return string(line[:idx]), string(line[idx+2:]), true
}

func joinLines(lines []string) string {
	out := lines[0]
	for _, l := range lines[1:] {
		out += "\n" + l
	}
	return out
}
