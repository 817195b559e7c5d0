package mapping

import (
	"fmt"
	"strings"

	"github.com/Konsultn-Engineering/sqlsession/param"
)

// SQLSource produces the bound SQL of a statement for a parameter value.
type SQLSource interface {
	BoundSQL(parameter any) (*BoundSQL, error)
}

// StaticSource always yields the same text and mappings. Clones carry one.
type StaticSource struct {
	sql      string
	mappings []ParameterMapping
}

// NewStaticSource creates a source over already bound text.
func NewStaticSource(sql string, mappings []ParameterMapping) *StaticSource {
	return &StaticSource{
		sql:      sql,
		mappings: append([]ParameterMapping(nil), mappings...),
	}
}

func (s *StaticSource) BoundSQL(parameter any) (*BoundSQL, error) {
	b := &BoundSQL{SQL: s.sql, Parameter: parameter}
	if len(s.mappings) > 0 {
		b.ParameterMappings = append(make([]ParameterMapping, 0, len(s.mappings)), s.mappings...)
	}
	return b, nil
}

type segmentKind uint8

const (
	segmentText segmentKind = iota
	segmentPlaceholder
	segmentSubstitution
)

type segment struct {
	kind segmentKind
	text string // literal text, or the property path
}

// TemplateSource parses statement text with #{property} placeholders, bound
// as '?' arguments, and ${property} substitutions, spliced into the text.
// Placeholder options after a comma, as in #{id,jdbcType=BIGINT}, are
// accepted and ignored.
type TemplateSource struct {
	text     string
	segments []segment
	dynamic  bool

	// precomputed when the template has no substitutions
	static *StaticSource
}

// NewTemplateSource parses text. It fails on unterminated or empty tokens.
func NewTemplateSource(text string) (*TemplateSource, error) {
	t := &TemplateSource{text: text}
	rest := text
	for len(rest) > 0 {
		i := indexToken(rest)
		if i < 0 {
			t.segments = append(t.segments, segment{kind: segmentText, text: rest})
			break
		}
		if i > 0 {
			t.segments = append(t.segments, segment{kind: segmentText, text: rest[:i]})
		}
		kind := segmentPlaceholder
		if rest[i] == '$' {
			kind = segmentSubstitution
			t.dynamic = true
		}
		end := strings.IndexByte(rest[i:], '}')
		if end < 0 {
			return nil, fmt.Errorf("mapping: unterminated token %q in %q", rest[i:], text)
		}
		prop, _, _ := strings.Cut(rest[i+2:i+end], ",")
		prop = strings.TrimSpace(prop)
		if prop == "" {
			return nil, fmt.Errorf("mapping: empty token in %q", text)
		}
		t.segments = append(t.segments, segment{kind: kind, text: prop})
		rest = rest[i+end+1:]
	}

	if !t.dynamic {
		sql, mappings := t.render(nil)
		t.static = NewStaticSource(sql, mappings)
	}
	return t, nil
}

func indexToken(s string) int {
	for i := 0; i+1 < len(s); i++ {
		if (s[i] == '#' || s[i] == '$') && s[i+1] == '{' {
			return i
		}
	}
	return -1
}

// Text returns the template as written.
func (t *TemplateSource) Text() string { return t.text }

func (t *TemplateSource) BoundSQL(parameter any) (*BoundSQL, error) {
	if t.static != nil {
		return t.static.BoundSQL(parameter)
	}
	subs := make(map[string]string)
	for _, seg := range t.segments {
		if seg.kind != segmentSubstitution {
			continue
		}
		v, err := param.Lookup(parameter, seg.text)
		if err != nil {
			return nil, err
		}
		if v == nil {
			subs[seg.text] = ""
			continue
		}
		subs[seg.text] = fmt.Sprint(v)
	}
	sql, mappings := t.render(subs)
	return &BoundSQL{SQL: sql, ParameterMappings: mappings, Parameter: parameter}, nil
}

func (t *TemplateSource) render(subs map[string]string) (string, []ParameterMapping) {
	var sb strings.Builder
	sb.Grow(len(t.text))
	var mappings []ParameterMapping
	for _, seg := range t.segments {
		switch seg.kind {
		case segmentText:
			sb.WriteString(seg.text)
		case segmentPlaceholder:
			sb.WriteByte('?')
			mappings = append(mappings, ParameterMapping{Property: seg.text})
		case segmentSubstitution:
			sb.WriteString(subs[seg.text])
		}
	}
	return strings.TrimSpace(sb.String()), mappings
}
