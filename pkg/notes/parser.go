package notes

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

type section int

const (
	sectionNone section = iota
	sectionSummary
	sectionKeyPoints
	sectionActionItems
)

// headerAliases maps lower-case header phrases to the section they open.
var headerAliases = []struct {
	phrase  string
	section section
}{
	{"summary", sectionSummary},
	{"overview", sectionSummary},
	{"key point", sectionKeyPoints},
	{"main point", sectionKeyPoints},
	{"action item", sectionActionItems},
	{"todo", sectionActionItems},
	{"to-do", sectionActionItems},
	{"next step", sectionActionItems},
}

// maxHeaderWords bounds how long a header line may be. A longer line that happens
// to contain "summary" is content, not a section switch.
const maxHeaderWords = 5

var (
	bulletPrefix = regexp.MustCompile(`^[-*•]\s*`)
	numberPrefix = regexp.MustCompile(`^\d+[.)]\s*`)
	headerTrim   = regexp.MustCompile(`^[#*_\s]+|[#*_:\s]+$`)
)

// Sections is the parsed form of a SUMMARY / KEY POINTS / ACTION ITEMS response.
type Sections struct {
	Summary     string
	KeyPoints   []string
	ActionItems []string
	// FoundSummary and FoundKeyPoints report whether the content supplied them,
	// as opposed to the fallback rules.
	FoundSummary   bool
	FoundKeyPoints bool
}

// ParseSections parses free-text model output.
//
// Lines are scanned in order. A header line switches the active section; any
// other line (or text following a header's colon) has one leading bullet or
// number marker stripped and is added to the active section. Summary lines are joined with spaces. Content before the
// first header is ignored.
//
// Fallbacks: a missing summary becomes the first 300 characters of content (or
// the first 200 if that is blank); missing key points become the first five
// non-empty lines. Key points and action items are capped at MaxListItems.
func ParseSections(content string) Sections {
	var (
		out     Sections
		summary []string
		current = sectionNone
	)

	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		clean := line
		if s, rest, ok := headerSection(line); ok {
			current = s
			if rest == "" {
				continue
			}
			clean = rest
		}

		clean = stripMarker(clean)
		if clean == "" {
			continue
		}
		switch current {
		case sectionSummary:
			summary = append(summary, clean)
		case sectionKeyPoints:
			out.KeyPoints = append(out.KeyPoints, clean)
		case sectionActionItems:
			out.ActionItems = append(out.ActionItems, clean)
		}
	}

	out.Summary = strings.Join(summary, " ")
	out.FoundSummary = out.Summary != ""
	out.FoundKeyPoints = len(out.KeyPoints) > 0

	if !out.FoundSummary {
		out.Summary = strings.TrimSpace(prefixRunes(content, 300))
		if out.Summary == "" {
			out.Summary = strings.TrimSpace(prefixRunes(content, 200))
		}
	}
	if !out.FoundKeyPoints {
		out.KeyPoints = firstNonEmptyLines(content, 5)
	}

	out.KeyPoints = capItems(out.KeyPoints, MaxListItems)
	out.ActionItems = capItems(out.ActionItems, MaxListItems)
	return out
}

// headerSection reports whether line is a section header and which one.
// A header either names a section before a colon ("Lecture Summary:", with any
// inline content after the colon returned as rest) or starts with an alias
// ("Key Points Discussed"). Either way the header part is at most maxHeaderWords long.
func headerSection(line string) (s section, rest string, ok bool) {
	if bulletPrefix.MatchString(line) && !strings.HasPrefix(line, "**") {
		return sectionNone, "", false
	}

	if idx := strings.Index(line, ":"); idx >= 0 {
		if s, ok := matchAlias(line[:idx], strings.Contains); ok {
			rest = strings.TrimSpace(strings.TrimLeft(line[idx+1:], "*_ "))
			return s, rest, true
		}
	}
	if s, ok := matchAlias(line, strings.HasPrefix); ok {
		return s, "", true
	}
	return sectionNone, "", false
}

func matchAlias(text string, match func(s, phrase string) bool) (section, bool) {
	norm := strings.ToLower(headerTrim.ReplaceAllString(text, ""))
	norm = numberPrefix.ReplaceAllString(norm, "")
	if norm == "" || len(strings.Fields(norm)) > maxHeaderWords {
		return sectionNone, false
	}
	for _, a := range headerAliases {
		if match(norm, a.phrase) {
			return a.section, true
		}
	}
	return sectionNone, false
}

func stripMarker(line string) string {
	line = bulletPrefix.ReplaceAllString(line, "")
	line = numberPrefix.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}

func prefixRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func firstNonEmptyLines(s string, n int) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			out = append(out, t)
			if len(out) == n {
				break
			}
		}
	}
	return out
}

func capItems(items []string, n int) []string {
	if items == nil {
		return []string{}
	}
	if len(items) > n {
		return items[:n]
	}
	return items
}
