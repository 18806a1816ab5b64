package prompt

import "strings"

// Segment is the displayable part of one chunk of program output.
type Segment struct {
	// Output is the text to show, trimmed of surrounding whitespace.
	Output string
	// Matched holds the labels that were stripped from the chunk, in the order they matched.
	Matched []string
}

// Empty reports whether there is nothing to display.
func (s Segment) Empty() bool { return s.Output == "" }

// Prompted reports whether the chunk contained at least one prompt label,
// i.e. the program has asked for input.
func (s Segment) Prompted() bool { return len(s.Matched) > 0 }

// Split returns the part of chunk that is new program output, given the prompts the program is
// expected to print.
//
// With no prompts the chunk is shown as is. Otherwise prompts are tried from the last declared
// to the first; each label found in what is left of the chunk cuts the chunk down to the text
// after it. When a label occurs several times, the text after its last occurrence is kept, so a
// label that recurs in the program's own output does not leak earlier text.
//
// The kept text is trimmed of surrounding whitespace in both modes, so a remainder that is only
// whitespace counts as empty. Whitespace inside it, including line breaks, is kept.
//
// This is a heuristic. Labels that are substrings of each other, or of ordinary output, can
// over-trim. A label is also matched without its surrounding whitespace when the exact label is
// absent, which widens that surface: with the label "Name: ", ordinary output containing "Name:"
// is cut there too.
func Split(chunk string, prompts List) Segment {
	if len(prompts) == 0 {
		return Segment{Output: strings.TrimSpace(chunk)}
	}

	rest := chunk
	var matched []string
	for i := len(prompts) - 1; i >= 0; i-- {
		label := prompts[i]
		if label == "" {
			continue
		}
		idx, n := lastLabel(rest, label)
		if idx < 0 {
			continue
		}
		rest = rest[idx+n:]
		matched = append(matched, label)
	}
	return Segment{Output: strings.TrimSpace(rest), Matched: matched}
}

// lastLabel returns the index and length of the last occurrence of label in s, or -1.
// Programs often print a prompt whose trailing space gets lost in transit, so the label is
// retried without surrounding whitespace.
func lastLabel(s, label string) (int, int) {
	if idx := strings.LastIndex(s, label); idx >= 0 {
		return idx, len(label)
	}
	trimmed := strings.TrimSpace(label)
	if trimmed == "" || trimmed == label {
		return -1, 0
	}
	if idx := strings.LastIndex(s, trimmed); idx >= 0 {
		return idx, len(trimmed)
	}
	return -1, 0
}
