// Package prompt finds the input prompts a program will print and uses them to split
// streamed program output into the text that should be displayed.
//
// Both operations are lexical. Nothing here parses or executes the program; the backend
// interprets the code, this package only looks at text.
package prompt

import "regexp"

// List is the ordered set of prompt labels extracted from one snapshot of source text.
// Labels appear in source order and duplicates are kept.
type List []string

// inputCall matches input("label") and input('label') call sites.
// The quotes must pair up; anything else is skipped.
var inputCall = regexp.MustCompile(`input\((?:"([^"\n]*)"|'([^'\n]*)')\)`)

// Extract returns the labels of every input("...") call site in src, in source order.
// It never fails: code without call sites, or with malformed ones, yields fewer labels.
func Extract(src string) List {
	matches := inputCall.FindAllStringSubmatchIndex(src, -1)
	prompts := make(List, 0, len(matches))
	for _, m := range matches {
		// m[2:4] is the double-quoted group, m[4:6] the single-quoted one.
		if m[2] >= 0 {
			prompts = append(prompts, src[m[2]:m[3]])
			continue
		}
		prompts = append(prompts, src[m[4]:m[5]])
	}
	return prompts
}

// Labels returns the non-empty labels, which are the only ones usable as delimiters.
func (l List) Labels() []string {
	var labels []string
	for _, p := range l {
		if p != "" {
			labels = append(labels, p)
		}
	}
	return labels
}
