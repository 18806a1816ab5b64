package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	cases := []struct {
		name       string
		chunk      string
		prompts    List
		expOutput  string
		expMatched []string
	}{
		{
			name:      "no prompts returns the trimmed chunk",
			chunk:     "Hello, World!\n",
			expOutput: "Hello, World!",
		},
		{
			name:      "no prompts and whitespace only is suppressed",
			chunk:     "   ",
			expOutput: "",
		},
		{
			name:       "prompt followed by output",
			chunk:      "Enter a number: 42",
			prompts:    List{"Enter a number: "},
			expOutput:  "42",
			expMatched: []string{"Enter a number: "},
		},
		{
			name:       "prompt alone yields nothing to show but is detected",
			chunk:      "Enter a number: ",
			prompts:    List{"Enter a number: "},
			expOutput:  "",
			expMatched: []string{"Enter a number: "},
		},
		{
			name:       "prompt whose trailing space was lost",
			chunk:      "Enter a number:",
			prompts:    List{"Enter a number: "},
			expOutput:  "",
			expMatched: []string{"Enter a number: "},
		},
		{
			name:      "prompts declared but none printed",
			chunk:     "Positive\n",
			prompts:   List{"Enter a number: "},
			expOutput: "Positive",
		},
		{
			name:       "output before the prompt is dropped",
			chunk:      "Welcome\nName: ",
			prompts:    List{"Name: "},
			expOutput:  "",
			expMatched: []string{"Name: "},
		},
		{
			name:       "last declared prompt is matched first",
			chunk:      "First: Second: done",
			prompts:    List{"First: ", "Second: "},
			expOutput:  "done",
			expMatched: []string{"Second: "},
		},
		{
			name:       "earlier prompts match against the remainder",
			chunk:      "A: x B: y",
			prompts:    List{"B: ", "A: "},
			expOutput:  "y",
			expMatched: []string{"A: ", "B: "},
		},
		{
			name:       "earlier prompt absent from the remainder",
			chunk:      "B: x A: y",
			prompts:    List{"B: ", "A: "},
			expOutput:  "y",
			expMatched: []string{"A: "},
		},
		{
			name:       "recurring label keeps the text after its last occurrence",
			chunk:      "N: 1\nN: 2\nN: 3",
			prompts:    List{"N: "},
			expOutput:  "3",
			expMatched: []string{"N: "},
		},
		{
			name:       "duplicate labels in the list",
			chunk:      "N: hello",
			prompts:    List{"N: ", "N: ", "N: "},
			expOutput:  "hello",
			expMatched: []string{"N: "},
		},
		{
			name:      "empty labels are never delimiters",
			chunk:     "plain output",
			prompts:   List{""},
			expOutput: "plain output",
		},
		{
			name:       "remainder keeps inner whitespace",
			chunk:      "N: \n  a\n\n  b  \n",
			prompts:    List{"N: "},
			expOutput:  "a\n\n  b",
			expMatched: []string{"N: "},
		},
		{
			// The whitespace-less retry finds "Name:" inside ordinary output and cuts there.
			name:       "trimmed label over-trims ordinary output",
			chunk:      "Last Name:Smith",
			prompts:    List{"Name: "},
			expOutput:  "Smith",
			expMatched: []string{"Name: "},
		},
		{
			// Overlapping labels are best-effort: "Name" is a substring of "Full Name: "
			// and the shorter label trims into what the longer one left behind.
			name:       "overlapping labels over-trim",
			chunk:      "Full Name: Name tag",
			prompts:    List{"Name", "Full Name: "},
			expOutput:  "tag",
			expMatched: []string{"Full Name: ", "Name"},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			seg := Split(c.chunk, c.prompts)
			assert.Equal(t, c.expOutput, seg.Output)
			assert.Equal(t, c.expMatched, seg.Matched)
			assert.Equal(t, c.expOutput == "", seg.Empty())
			assert.Equal(t, len(c.expMatched) > 0, seg.Prompted())
		})
	}
}

// Splitting is a function of its inputs: repeating it on the same chunk gives the same result,
// and feeding it its own output never brings back text it removed.
func TestSplitStable(t *testing.T) {
	prompts := List{"x: ", "y: "}
	chunks := []string{"", " ", "x: 1", "y: 2", "x: 1 y: 2", "y: x: ", "hello x: world y: !"}
	for _, chunk := range chunks {
		a := Split(chunk, prompts)
		b := Split(chunk, prompts)
		assert.Equal(t, a, b)
		again := Split(a.Output, prompts)
		assert.LessOrEqual(t, len(again.Output), len(a.Output))
	}
}
