package synthesis

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/scrypster/animus/pkg/types"
)

// maxEventContentLen caps raw content rendered into the prompt when an event
// has no summary.
const maxEventContentLen = 200

// eventText returns the text rendered for one event: the summary when
// present, otherwise the content truncated to maxEventContentLen. Truncation
// backs up to a rune boundary so the prompt never carries invalid UTF-8.
func eventText(e *types.Event) string {
	if e.Summary != "" {
		return e.Summary
	}
	if len(e.Content) > maxEventContentLen {
		cut := maxEventContentLen
		for cut > 0 && !utf8.RuneStart(e.Content[cut]) {
			cut--
		}
		return e.Content[:cut] + "..."
	}
	return e.Content
}

// eventTimestamp picks the displayed timestamp: occurred_at when the source
// supplied one, otherwise ingestion time.
func eventTimestamp(e *types.Event) time.Time {
	if e.OccurredAt != nil {
		return *e.OccurredAt
	}
	return e.CreatedAt
}

// FormatEvents renders the collected batch into the deterministic block the
// synthesis prompt cites events by: one line per event,
// "[index] timestamp | role (author): text", indexed from 1 in chronological
// order so indices are stable across a resumed run.
func FormatEvents(events []*types.Event) string {
	var b strings.Builder
	for i, e := range events {
		role := e.Role
		if role == "" {
			role = "unknown"
		}
		author := e.Author
		if author == "" {
			author = "unknown"
		}
		fmt.Fprintf(&b, "[%d] %s | %s (%s): %s\n",
			i+1, eventTimestamp(e).UTC().Format(time.RFC3339), role, author, eventText(e))
	}
	return b.String()
}

// BuildSynthesisPrompt constructs the prompt asking the model to distill a
// batch of raw events into one durable memory.
func BuildSynthesisPrompt(anima *types.Anima, events []*types.Event) string {
	var b strings.Builder

	b.WriteString("You are the memory system for an AI persona named ")
	b.WriteString(anima.Name)
	b.WriteString(".\n")
	if anima.Purpose != "" {
		b.WriteString("Persona purpose: ")
		b.WriteString(anima.Purpose)
		b.WriteString("\n")
	}
	b.WriteString("\nBelow are the raw interaction events that occurred since the last memory was formed:\n\n")
	b.WriteString(FormatEvents(events))
	b.WriteString(`
Distill these events into a single durable memory the persona will carry forward.

Respond with a single JSON object and nothing else:
{
  "summary": "one or two sentences capturing what happened and why it matters",
  "content": "a longer narrative of the experience, or null",
  "importance": 0.0 to 1.0 or null,
  "confidence": 0.0 to 1.0 or null
}

The "summary" field is required. Output only the JSON object, with no markdown fences and no surrounding prose.`)

	return b.String()
}
