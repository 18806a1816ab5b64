package console

import "fmt"

// Template is a named snippet of source text.
type Template struct {
	Name string
	Code string
}

// Templates are the built-in snippets, in menu order.
var Templates = []Template{
	{Name: "Hello World", Code: `print("Hello, World!")`},
	{Name: "Loop Example", Code: "for i in range(5):\n\tprint(i)"},
	{Name: "Basic Conditions", Code: "x = int(input(\"Enter a number: \"))\nif x > 0:\n\tprint(\"Positive\")\nelif x < 0:\n\tprint(\"Negative\")\nelse:\n\tprint(\"Zero\")"},
	{Name: "Function Example", Code: "def greet(name):\n\treturn f\"Hello, {name}!\"\nprint(greet(\"Alice\"))"},
	{Name: "List Example", Code: "squares = [x**2 for x in range(10)]\nprint(squares)"},
	{Name: "Class/Object Example", Code: "class Person:\n\tdef __init__(self, name):\n\t\tself.name = name\n\tdef greet(self):\n\t\treturn f\"Hello, my name is {self.name}!\"\np = Person(\"Alice\")\nprint(p.greet())"},
}

func lookupTemplate(name string) (Template, error) {
	for _, t := range Templates {
		if t.Name == name {
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("unknown template %q", name)
}
