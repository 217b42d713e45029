package curation

import (
	"fmt"
	"strings"

	"github.com/scrypster/animus/pkg/types"
)

const (
	maxPrinciples     = 5
	maxKnowledgeItems = 10
)

// formatIdentityContext renders the identity block shared by the merge and
// review prompts: personality type, communication style, up to five
// principles, and the epistemology note from the self-reflection structure.
func formatIdentityContext(identity *types.Identity) string {
	if identity == nil {
		return "No identity context available.\n"
	}
	var b strings.Builder
	if identity.PersonalityType != "" {
		fmt.Fprintf(&b, "Personality type: %s\n", identity.PersonalityType)
	}
	if identity.CommunicationStyle != "" {
		fmt.Fprintf(&b, "Communication style: %s\n", identity.CommunicationStyle)
	}
	for i, p := range reflectionStrings(identity.SelfReflection, "principles", maxPrinciples) {
		fmt.Fprintf(&b, "Principle %d: %s\n", i+1, p)
	}
	if epistemology, ok := identity.SelfReflection["epistemology"].(string); ok && epistemology != "" {
		fmt.Fprintf(&b, "Epistemology: %s\n", epistemology)
	}
	if b.Len() == 0 {
		return "No identity context available.\n"
	}
	return b.String()
}

// reflectionStrings extracts up to max string entries from a list-valued
// self-reflection key, tolerating the loosely typed JSON structure.
func reflectionStrings(reflection map[string]interface{}, key string, max int) []string {
	items, ok := reflection[key].([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
			if len(out) == max {
				break
			}
		}
	}
	return out
}

// formatKnowledgeContext renders up to maxKnowledgeItems knowledge
// summaries, with an "and N more" suffix when truncated.
func formatKnowledgeContext(items []*types.Knowledge) string {
	if len(items) == 0 {
		return "No existing knowledge.\n"
	}
	var b strings.Builder
	shown := items
	if len(shown) > maxKnowledgeItems {
		shown = shown[:maxKnowledgeItems]
	}
	for _, k := range shown {
		fmt.Fprintf(&b, "- %s\n", k.Summary)
	}
	if extra := len(items) - len(shown); extra > 0 {
		fmt.Fprintf(&b, "...and %d more\n", extra)
	}
	return b.String()
}

// formatMemoryList renders memories as an indexed block, the index being how
// review decisions refer back to them.
func formatMemoryList(memories []*types.Memory) string {
	var b strings.Builder
	for i, m := range memories {
		fmt.Fprintf(&b, "[%d] %s", i, m.Summary)
		if m.Importance != nil || m.Confidence != nil {
			fmt.Fprintf(&b, " (importance: %s, confidence: %s)",
				formatOptionalFloat(m.Importance), formatOptionalFloat(m.Confidence))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatOptionalFloat(f *float64) string {
	if f == nil {
		return "unknown"
	}
	return fmt.Sprintf("%.2f", *f)
}

// BuildMergePrompt asks for a binary merge/keep-separate decision over a set
// of candidate memories, grounded in the anima's identity and existing
// knowledge.
func BuildMergePrompt(memories []*types.Memory, identity *types.Identity, knowledge []*types.Knowledge) string {
	var b strings.Builder

	b.WriteString("You are curating the long-term memory of an AI persona.\n\n")
	b.WriteString("Persona identity:\n")
	b.WriteString(formatIdentityContext(identity))
	b.WriteString("\nExisting knowledge:\n")
	b.WriteString(formatKnowledgeContext(knowledge))
	b.WriteString("\nCandidate memories:\n")
	b.WriteString(formatMemoryList(memories))
	b.WriteString(`
Decide whether these memories describe the same underlying experience and should be merged into one, or remain separate.

Respond with a single JSON object and nothing else:
{
  "should_merge": true or false,
  "merged_summary": "the combined summary (required when should_merge is true)",
  "importance": 0.0 to 1.0,
  "confidence": 0.0 to 1.0,
  "reasoning": "one sentence explaining the decision"
}`)

	return b.String()
}

// BuildReviewPrompt asks for a KEEP/UPDATE/SPLIT/DELETE verdict per memory,
// matched by index.
func BuildReviewPrompt(memories []*types.Memory, identity *types.Identity, knowledge []*types.Knowledge) string {
	var b strings.Builder

	b.WriteString("You are reviewing the long-term memories of an AI persona.\n\n")
	b.WriteString("Persona identity:\n")
	b.WriteString(formatIdentityContext(identity))
	b.WriteString("\nExisting knowledge:\n")
	b.WriteString(formatKnowledgeContext(knowledge))
	b.WriteString("\nMemories under review:\n")
	b.WriteString(formatMemoryList(memories))
	b.WriteString(`
For each memory, decide one of:
- KEEP: the memory is fine as-is
- UPDATE: refine the summary or adjust importance/confidence
- SPLIT: the memory conflates 2+ distinct experiences; propose a summary for each
- DELETE: the memory is redundant or worthless

Respond with a single JSON array and nothing else, one object per memory:
[
  {
    "index": 0,
    "action": "KEEP" | "UPDATE" | "SPLIT" | "DELETE",
    "new_summary": "the refined summary (UPDATE only)",
    "new_importance": 0.0 to 1.0 (UPDATE only),
    "new_confidence": 0.0 to 1.0 (UPDATE only),
    "split_into": ["...", "..."] (SPLIT only, 2 or more),
    "reasoning": "one sentence explaining the decision"
  }
]`)

	return b.String()
}
