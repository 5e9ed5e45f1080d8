// Package docx fills placeholders in Word (.docx) templates.
//
// Supported tags, written in the document text:
//
//	{name}      value, XML escaped, newlines become line breaks
//	{#name}...{/name}  section: repeated per slice item, shown once for
//	            truthy scalars and maps, skipped for empty/false values
//	{^name}...{/name}  inverted section, shown only when name is empty/false
//	{%name}     inline image supplied by an ImageFunc
//
// A section tag that is the only text of its paragraph removes that
// paragraph. A section that opens and closes in different cells of the same
// table row repeats the whole row.
package docx

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	// ErrUnclosedTag is returned when a "{" has no matching "}".
	ErrUnclosedTag = errors.New("unclosed tag")
	// ErrUnopenedTag is returned for a "}" with no opening "{".
	ErrUnopenedTag = errors.New("unopened tag")
	// ErrSection is returned for mismatched or unterminated sections.
	ErrSection = errors.New("unbalanced section")
	// ErrEmptyTag is returned for "{}".
	ErrEmptyTag = errors.New("empty tag")
)

const (
	markOpen  = "\uE000"
	markClose = "\uE001"
)

var (
	textPattern      = regexp.MustCompile(`(<w:t(?:\s[^>]*)?>)([^<]*)</w:t>`)
	tagPattern       = regexp.MustCompile(`\{([^{}]*)\}`)
	paragraphPattern = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	markPattern      = regexp.MustCompile(markOpen + `([^` + markClose + `]*)` + markClose)
	rowStartPattern  = regexp.MustCompile(`<w:tr[ >]`)
)

type nodeKind int

const (
	nodeRaw nodeKind = iota
	nodeValue
	nodeImage
	nodeSection
)

type node struct {
	kind     nodeKind
	text     string
	inverted bool
	children []node
}

// compile turns a WordprocessingML part into a node tree.
func compile(xml string) ([]node, error) {
	healed, err := heal(xml)
	if err != nil {
		return nil, err
	}
	marked, err := markTags(healed)
	if err != nil {
		return nil, err
	}
	marked = collapseSectionParagraphs(marked)
	marked = expandRowSections(marked)
	return parse(marked)
}

// heal moves tags split across several <w:t> runs into the run that opens them.
func heal(xml string) (string, error) {
	locs := textPattern.FindAllStringSubmatchIndex(xml, -1)
	if len(locs) == 0 {
		return xml, nil
	}
	texts := make([]string, len(locs))
	for i, loc := range locs {
		texts[i] = xml[loc[4]:loc[5]]
	}

	pending := -1
	for i := range texts {
		rest := texts[i]
		if pending >= 0 {
			if strings.Contains(xml[locs[i-1][1]:locs[i][0]], "</w:p>") {
				return "", fmt.Errorf("%w: %q", ErrUnclosedTag, texts[pending])
			}
			end := strings.IndexByte(rest, '}')
			if end < 0 {
				if strings.ContainsRune(rest, '{') {
					return "", fmt.Errorf("%w: %q", ErrUnclosedTag, texts[pending])
				}
				texts[pending] += rest
				texts[i] = ""
				continue
			}
			if strings.ContainsRune(rest[:end], '{') {
				return "", fmt.Errorf("%w: %q", ErrUnclosedTag, texts[pending])
			}
			texts[pending] += rest[:end+1]
			rest = rest[end+1:]
			texts[i] = rest
			pending = -1
		}
		open, err := scanBraces(rest)
		if err != nil {
			return "", err
		}
		if open {
			pending = i
		}
	}
	if pending >= 0 {
		return "", fmt.Errorf("%w: %q", ErrUnclosedTag, texts[pending])
	}

	var b strings.Builder
	b.Grow(len(xml))
	last := 0
	for i, loc := range locs {
		b.WriteString(xml[last:loc[0]])
		openTag := xml[loc[2]:loc[3]]
		if strings.ContainsRune(texts[i], '{') && !strings.Contains(openTag, "xml:space") {
			openTag = `<w:t xml:space="preserve">`
		}
		b.WriteString(openTag)
		b.WriteString(texts[i])
		b.WriteString("</w:t>")
		last = loc[1]
	}
	b.WriteString(xml[last:])
	return b.String(), nil
}

func scanBraces(s string) (bool, error) {
	inside := false
	for _, r := range s {
		switch r {
		case '{':
			if inside {
				return false, fmt.Errorf("%w: %q", ErrUnclosedTag, s)
			}
			inside = true
		case '}':
			if !inside {
				return false, fmt.Errorf("%w: %q", ErrUnopenedTag, s)
			}
			inside = false
		}
	}
	return inside, nil
}

// markTags replaces every {tag} inside run text with a private-use marker.
func markTags(xml string) (string, error) {
	var firstErr error
	out := textPattern.ReplaceAllStringFunc(xml, func(run string) string {
		return tagPattern.ReplaceAllStringFunc(run, func(tag string) string {
			body := strings.TrimSpace(tag[1 : len(tag)-1])
			if body == "" || body == "#" || body == "/" || body == "^" || body == "%" {
				if firstErr == nil {
					firstErr = fmt.Errorf("%w: %q", ErrEmptyTag, tag)
				}
				return tag
			}
			return markOpen + body + markClose
		})
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// collapseSectionParagraphs drops paragraphs whose only text is a section tag.
func collapseSectionParagraphs(xml string) string {
	return paragraphPattern.ReplaceAllStringFunc(xml, func(p string) string {
		inner := p[4:]
		if strings.Contains(inner, "<w:p>") || strings.Contains(inner, "<w:p ") {
			return p
		}
		var text strings.Builder
		for _, m := range textPattern.FindAllStringSubmatch(p, -1) {
			text.WriteString(m[2])
		}
		trimmed := strings.TrimSpace(text.String())
		m := markPattern.FindStringSubmatch(trimmed)
		if m == nil || m[0] != trimmed {
			return p
		}
		switch m[1][0] {
		case '#', '^', '/':
			return m[0]
		}
		return p
	})
}

// expandRowSections widens sections that span table cells to the full row.
func expandRowSections(xml string) string {
	for {
		next, changed := expandFirstRow(xml)
		if !changed {
			return next
		}
		xml = next
	}
}

func expandFirstRow(xml string) (string, bool) {
	type open struct {
		name       string
		start, end int
	}
	var stack []open
	for _, loc := range markPattern.FindAllStringSubmatchIndex(xml, -1) {
		body := xml[loc[2]:loc[3]]
		switch body[0] {
		case '#', '^':
			stack = append(stack, open{name: strings.TrimSpace(body[1:]), start: loc[0], end: loc[1]})
			continue
		case '/':
		default:
			continue
		}
		if len(stack) == 0 {
			return xml, false
		}
		o := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if o.name != strings.TrimSpace(body[1:]) {
			return xml, false
		}

		between := xml[o.end:loc[0]]
		if !strings.Contains(between, "</w:tc>") || strings.Contains(between, "</w:tr>") {
			continue
		}
		if strings.HasPrefix(xml[o.end:], "<w:tr") {
			continue
		}
		starts := rowStartPattern.FindAllStringIndex(xml[:o.start], -1)
		if len(starts) == 0 {
			continue
		}
		rowStart := starts[len(starts)-1][0]
		if strings.Contains(xml[rowStart:o.start], "</w:tr>") {
			continue
		}
		after := xml[loc[1]:]
		rel := strings.Index(after, "</w:tr>")
		if rel < 0 {
			continue
		}
		if next := rowStartPattern.FindStringIndex(after); next != nil && next[0] < rel {
			continue
		}
		rowEnd := loc[1] + rel + len("</w:tr>")

		var b strings.Builder
		b.Grow(len(xml))
		b.WriteString(xml[:rowStart])
		b.WriteString(xml[o.start:o.end])
		b.WriteString(xml[rowStart:o.start])
		b.WriteString(xml[o.end:loc[0]])
		b.WriteString(xml[loc[1]:rowEnd])
		b.WriteString(xml[loc[0]:loc[1]])
		b.WriteString(xml[rowEnd:])
		return b.String(), true
	}
	return xml, false
}

func parse(xml string) ([]node, error) {
	type frame struct {
		section *node
		nodes   []node
	}
	stack := []frame{{}}
	last := 0
	for _, loc := range markPattern.FindAllStringSubmatchIndex(xml, -1) {
		top := &stack[len(stack)-1]
		if loc[0] > last {
			top.nodes = append(top.nodes, node{kind: nodeRaw, text: xml[last:loc[0]]})
		}
		last = loc[1]

		body := xml[loc[2]:loc[3]]
		name := html.UnescapeString(strings.TrimSpace(body[1:]))
		switch body[0] {
		case '#', '^':
			stack = append(stack, frame{section: &node{kind: nodeSection, text: name, inverted: body[0] == '^'}})
		case '/':
			if len(stack) == 1 {
				return nil, fmt.Errorf("%w: closing %q without opening", ErrSection, name)
			}
			closed := stack[len(stack)-1]
			if closed.section.text != name {
				return nil, fmt.Errorf("%w: %q closed by %q", ErrSection, closed.section.text, name)
			}
			stack = stack[:len(stack)-1]
			sec := *closed.section
			sec.children = closed.nodes
			parent := &stack[len(stack)-1]
			parent.nodes = append(parent.nodes, sec)
		case '%':
			top.nodes = append(top.nodes, node{kind: nodeImage, text: name})
		default:
			top.nodes = append(top.nodes, node{kind: nodeValue, text: html.UnescapeString(strings.TrimSpace(body))})
		}
	}
	if len(stack) > 1 {
		return nil, fmt.Errorf("%w: %q is never closed", ErrSection, stack[len(stack)-1].section.text)
	}
	if last < len(xml) {
		stack[0].nodes = append(stack[0].nodes, node{kind: nodeRaw, text: xml[last:]})
	}
	return stack[0].nodes, nil
}
