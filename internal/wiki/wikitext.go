package wiki

import "strings"

// TemplateCall is one template invocation found in page content.
// Wikitext is the verbatim fragment including the outer braces; it is
// the exact substring write-back later replaces, so it is never
// normalized or reformatted.
type TemplateCall struct {
	Name     string
	Wikitext string
	params   map[string]string
}

// Param returns the value of the first of the given parameter names that
// is present with a non-empty value. Names are matched case-insensitively.
func (t TemplateCall) Param(names ...string) (string, bool) {
	for _, name := range names {
		if v, ok := t.params[strings.ToLower(strings.TrimSpace(name))]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// ParseTemplates scans wikitext content and returns all top-level
// template invocations in document order. Nested templates are kept
// inside their parent's parameter values rather than reported separately;
// the citation templates this pipeline cares about are top-level.
func ParseTemplates(content string) []TemplateCall {
	var calls []TemplateCall

	for i := 0; i+1 < len(content); i++ {
		if content[i] != '{' || content[i+1] != '{' {
			continue
		}

		end, ok := matchTemplate(content, i)
		if !ok {
			continue
		}

		fragment := content[i:end]
		if call, ok := parseTemplateCall(fragment); ok {
			calls = append(calls, call)
		}
		i = end - 1
	}

	return calls
}

// matchTemplate returns the exclusive end offset of the template opening
// at start, tracking {{ }} nesting. Returns false for unbalanced braces.
func matchTemplate(content string, start int) (int, bool) {
	depth := 0
	for i := start; i+1 < len(content); i++ {
		switch {
		case content[i] == '{' && content[i+1] == '{':
			depth++
			i++
		case content[i] == '}' && content[i+1] == '}':
			depth--
			i++
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// parseTemplateCall splits a {{...}} fragment into its name and
// parameters. Pipes inside nested templates and wiki links belong to the
// enclosing value and are not treated as separators.
func parseTemplateCall(fragment string) (TemplateCall, bool) {
	inner := strings.TrimSuffix(strings.TrimPrefix(fragment, "{{"), "}}")

	parts := splitTopLevel(inner, '|')
	if len(parts) == 0 {
		return TemplateCall{}, false
	}

	name := strings.TrimSpace(parts[0])
	if name == "" {
		return TemplateCall{}, false
	}

	params := make(map[string]string, len(parts)-1)
	for _, part := range parts[1:] {
		key, value, found := strings.Cut(part, "=")
		if !found {
			// Positional parameter, not used by citation templates.
			continue
		}
		params[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	return TemplateCall{
		Name:     name,
		Wikitext: fragment,
		params:   params,
	}, true
}

// splitTopLevel splits s on sep, ignoring separators nested inside
// {{...}} or [[...]].
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	var braceDepth, bracketDepth int
	last := 0

	for i := 0; i < len(s); i++ {
		switch {
		case i+1 < len(s) && s[i] == '{' && s[i+1] == '{':
			braceDepth++
			i++
		case i+1 < len(s) && s[i] == '}' && s[i+1] == '}':
			braceDepth--
			i++
		case i+1 < len(s) && s[i] == '[' && s[i+1] == '[':
			bracketDepth++
			i++
		case i+1 < len(s) && s[i] == ']' && s[i+1] == ']':
			bracketDepth--
			i++
		case s[i] == sep && braceDepth == 0 && bracketDepth == 0:
			parts = append(parts, s[last:i])
			last = i + 1
		}
	}
	parts = append(parts, s[last:])

	return parts
}
