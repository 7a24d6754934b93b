package oracle

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

const classifySystem = `You are reviewing file contents recovered from a version-control object store. Judge whether each content is a meaningful project file worth keeping (code, configuration, documentation, data) or disposable noise (build output, lock files, binaries, editor droppings). Respond with a single JSON object and nothing else, using the keys: "name" (a plausible filename without extension), "file_type" (extension such as py, go, md, json, txt), "valuable" (boolean), "analysis" (one or two sentences), "confidence" (0.0 to 1.0).`

const compareSystem = `You are comparing two file contents recovered from a version-control object store. Decide whether they are versions of the same logical file, and if so which is newer, judging by completeness, added functionality, fixes, and refinement. Respond with a single JSON object and nothing else, using the keys: "same_file" (boolean), "newer" ("a", "b", or "unknown"), "confidence" (0.0 to 1.0), "rationale" (one or two sentences).`

const partitionSystem = `You are organizing file contents recovered from a version-control object store. Cluster the numbered items so that each cluster holds versions of one logical file; leave unrelated items out of every cluster. Respond with a single JSON object and nothing else, shaped as {"groups": [{"label": "descriptive-name", "members": [1-based item numbers], "rationale": "one sentence"}]}.`

func classifyPrompt(item Item, preview int) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Content id: %s\n", item.ID)
	fmt.Fprintf(&b, "Content:\n%s\n", truncate(item.Content, preview))
	return classifySystem, b.String()
}

func comparePrompt(a, b Item, preview int) (system, user string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "FILE A (id %s, %d bytes", a.ID, len(a.Content))
	if a.Name != "" {
		fmt.Fprintf(&sb, ", known as %q", a.Name)
	}
	sb.WriteString("):\n")
	sb.WriteString(truncate(a.Content, preview))
	fmt.Fprintf(&sb, "\n\nFILE B (id %s, %d bytes", b.ID, len(b.Content))
	if b.Name != "" {
		fmt.Fprintf(&sb, ", known as %q", b.Name)
	}
	sb.WriteString("):\n")
	sb.WriteString(truncate(b.Content, preview))
	return compareSystem, sb.String()
}

func partitionPrompt(items []Item, preview int) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "There are %d items.\n\n", len(items))
	for i, it := range items {
		fmt.Fprintf(&b, "ITEM %d (id %s", i+1, it.ID)
		if it.Name != "" {
			fmt.Fprintf(&b, ", known as %q", it.Name)
		}
		if it.Kind != "" {
			fmt.Fprintf(&b, ", type %s", it.Kind)
		}
		b.WriteString("):\n")
		b.WriteString(truncate(it.Content, preview))
		b.WriteString("\n\n")
	}
	return partitionSystem, b.String()
}

// truncate caps content at limit bytes on a rune boundary, appending a
// marker when cut. limit <= 0 sends the content whole.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n[truncated]"
}

// parseJSONBlock unmarshals the outermost JSON object embedded in text.
// Models wrap their JSON in prose or fences often enough that taking the
// first-to-last brace span is the dependable route.
func parseJSONBlock(text string, v any) error {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in completion text")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("decode completion JSON: %w", err)
	}
	return nil
}
