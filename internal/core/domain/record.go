package domain

import (
	"fmt"
	"strconv"
)

// Well-known record fields. The identifier field is shared by every store.
const (
	FieldID          = "id"
	FieldKind        = "source_kind"
	FieldFields      = "fields"
	FieldSummary     = "summary"
	FieldDescription = "description"
	FieldTitle       = "title"
	FieldBody        = "body"
	FieldStorage     = "storage"
	FieldValue       = "value"
	FieldContent     = "content"
	FieldImageText   = "image_text"
	FieldPDFText     = "pdf_text"
)

// SourceKind discriminates the shape of a Record.
type SourceKind string

const (
	// KindUnknown marks records written without a discriminator.
	KindUnknown SourceKind = ""

	// KindTracker marks issue tracker records (nested "fields" mapping).
	KindTracker SourceKind = "tracker"

	// KindWiki marks wiki page records ("title" and "body.storage.value").
	KindWiki SourceKind = "wiki"
)

// ParseSourceKind converts a string to a SourceKind.
// Unrecognised values map to KindUnknown.
func ParseSourceKind(s string) SourceKind {
	switch SourceKind(s) {
	case KindTracker:
		return KindTracker
	case KindWiki:
		return KindWiki
	default:
		return KindUnknown
	}
}

// Record is a semi-structured document as returned by a source and as
// persisted in a store. Values are JSON-like: string, float64, bool, nil,
// map[string]any and []any.
type Record map[string]any

// ID returns the record identifier as a string.
// Numeric identifiers are formatted without a fractional part.
func (r Record) ID() string {
	switch v := r[FieldID].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Kind returns the record's source kind discriminator.
func (r Record) Kind() SourceKind {
	s, _ := r[FieldKind].(string)
	return ParseSourceKind(s)
}

// Map returns the nested mapping stored under key.
func (r Record) Map(key string) (map[string]any, bool) {
	m, ok := r[key].(map[string]any)
	return m, ok
}

// Lookup walks nested mappings along path.
// It reports false as soon as a segment is missing or not a mapping.
func (r Record) Lookup(path ...string) (any, bool) {
	var cur any = map[string]any(r)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return Record(cloneMap(r))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Record:
		return Record(cloneMap(t))
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// IssueView is the typed view of a tracker record.
type IssueView struct {
	// Fields is the nested "fields" mapping, shared with the record.
	Fields map[string]any

	Summary     any
	HasSummary  bool
	Description any
	HasDesc     bool
}

// Issue decodes the tracker view of a record.
// It reports false when the record has no "fields" mapping.
func (r Record) Issue() (IssueView, bool) {
	fields, ok := r.Map(FieldFields)
	if !ok {
		return IssueView{}, false
	}
	v := IssueView{Fields: fields}
	v.Summary, v.HasSummary = fields[FieldSummary]
	v.Description, v.HasDesc = fields[FieldDescription]
	return v, true
}

// PageView is the typed view of a wiki record.
type PageView struct {
	Title      any
	HasTitle   bool
	Storage    any
	HasStorage bool
}

// Page decodes the wiki view of a record.
func (r Record) Page() PageView {
	var v PageView
	v.Title, v.HasTitle = r[FieldTitle]
	v.Storage, v.HasStorage = r.Lookup(FieldBody, FieldStorage, FieldValue)
	return v
}
