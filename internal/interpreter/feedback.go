package interpreter

import (
	"regexp"
	"strings"
)

// Segmenter splits raw feedback text into discrete statements plus at most
// one trailing follow-up question. Segmentation is heuristic; implementations
// behind this interface can be swapped for a stricter structured-output mode.
type Segmenter interface {
	Segment(raw string) (statements []string, followUp string)
}

// markerSegmenter is the default Segmenter. It detects numbered or bulleted
// list markers; with none found, the whole text is a single statement.
type markerSegmenter struct{}

// NewMarkerSegmenter returns the default list-marker based segmenter.
func NewMarkerSegmenter() Segmenter {
	return markerSegmenter{}
}

var listMarker = regexp.MustCompile(`^\s*(?:\d+[.)]\s+|[-*•]\s+)`)

func (markerSegmenter) Segment(raw string) ([]string, string) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, ""
	}

	text, followUp := exciseTrailingQuestion(text)

	var statements []string
	current := ""
	sawMarker := false

	flush := func() {
		if trimmed := strings.TrimSpace(current); trimmed != "" {
			statements = append(statements, trimmed)
		}
		current = ""
	}

	for _, line := range strings.Split(text, "\n") {
		if listMarker.MatchString(line) {
			sawMarker = true
			flush()
			current = listMarker.ReplaceAllString(line, "")
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if current != "" {
			current += " "
		}
		current += strings.TrimSpace(line)
	}
	flush()

	if !sawMarker {
		// No list structure: the whole remaining text is one statement.
		joined := strings.TrimSpace(strings.Join(statements, " "))
		if joined == "" {
			return nil, followUp
		}
		return []string{joined}, followUp
	}
	return statements, followUp
}

// exciseTrailingQuestion detects the final sentence ending in '?' near the
// end of the text, preceded by a sentence boundary, and removes it. Without
// such a sentence the text is returned untouched and the question is empty.
func exciseTrailingQuestion(text string) (string, string) {
	trimmed := strings.TrimRight(text, " \n\t")
	if !strings.HasSuffix(trimmed, "?") {
		return text, ""
	}

	boundary := -1
	for i := len(trimmed) - 2; i >= 0; i-- {
		switch trimmed[i] {
		case '.', '!', '?', '\n':
			boundary = i
		}
		if boundary >= 0 {
			break
		}
	}
	if boundary < 0 {
		// The entire text is the question; treat it as a statement instead.
		return text, ""
	}

	question := strings.TrimSpace(trimmed[boundary+1:])
	rest := strings.TrimSpace(trimmed[:boundary+1])
	if question == "" || rest == "" {
		return text, ""
	}
	return rest, question
}
