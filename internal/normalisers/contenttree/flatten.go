// Package contenttree flattens rich-text content trees into plain text.
//
// A content tree is a nested mapping of typed blocks, as used by issue
// tracker descriptions:
//
//	{"type": "doc", "content": [
//	    {"type": "paragraph", "content": [
//	        {"type": "text", "text": "Hello"},
//	        {"type": "text", "text": "world"}]}]}
//
// Flattening keeps the text runs of every paragraph, joins the runs of a
// paragraph with a space and the paragraphs with a newline. Malformed input
// never fails: non-mappings pass through and unexpected mappings flatten to
// the empty string.
package contenttree

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Node types recognised by Flatten.
const (
	TypeDoc       = "doc"
	TypeParagraph = "paragraph"
	TypeText      = "text"
)

// Flatten converts a content tree to plain text.
//
//   - A value that is not a mapping is returned unchanged.
//   - A mapping whose "type" is not "doc", or that has no "content"
//     sequence, yields "".
//   - Otherwise each paragraph block with at least one text inline yields
//     one line (the inline texts joined by a space); lines are joined by a
//     newline in document order. Other blocks contribute nothing.
func Flatten(v any) any {
	doc, ok := asMap(v)
	if !ok {
		return v
	}
	if doc["type"] != TypeDoc {
		return ""
	}
	blocks, ok := asSlice(doc["content"])
	if !ok {
		return ""
	}

	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		block, ok := asMap(b)
		if !ok || block["type"] != TypeParagraph {
			continue
		}
		inlines, ok := asSlice(block["content"])
		if !ok {
			continue
		}

		var texts []string
		for _, in := range inlines {
			inline, ok := asMap(in)
			if !ok || inline["type"] != TypeText {
				continue
			}
			// A text inline without a string "text" still counts, as "".
			s, _ := inline["text"].(string)
			texts = append(texts, s)
		}
		if len(texts) > 0 {
			lines = append(lines, strings.Join(texts, " "))
		}
	}
	return strings.Join(lines, "\n")
}

// FlattenString flattens v and renders the result as a string.
// Pass-through values that are not strings are formatted with fmt;
// nil renders as "".
func FlattenString(v any) string {
	switch out := Flatten(v).(type) {
	case string:
		return out
	case nil:
		return ""
	default:
		return fmt.Sprint(out)
	}
}

// Decode parses a JSON document into the generic value Flatten accepts.
func Decode(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode content tree: %w", err)
	}
	return v, nil
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []map[string]any:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	default:
		return nil, false
	}
}
