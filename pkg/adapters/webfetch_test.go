package adapters

import "testing"

func TestExtractTextStripsScriptAndStyle(t *testing.T) {
	html := `<html><head><style>.a{color:red}</style></head><body><script>alert(1)</script><p>Hello  World</p></body></html>`
	got := extractText(html)
	if got != "Hello World" {
		t.Fatalf("got %q, want %q", got, "Hello World")
	}
}

func TestExtractTextCollapsesWhitespace(t *testing.T) {
	html := "<p>one\n\n\ttwo   three</p>"
	got := extractText(html)
	if got != "one two three" {
		t.Fatalf("got %q", got)
	}
}
