package helpers

import "testing"

func TestPlainTextStripsTags(t *testing.T) {
	cases := map[string]string{
		"<b>Uni knot</b> basics":                  "Uni knot basics",
		"plain already":                           "plain already",
		"  <script>alert(1)</script>trailing ":    "trailing",
		"<a href=\"https://x.example\">a knot</a>": "a knot",
		"": "",
	}
	for in, want := range cases {
		if got := PlainText(in); got != want {
			t.Errorf("PlainText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncateSnippet(t *testing.T) {
	if got := TruncateSnippet("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	got := TruncateSnippet("a long snippet that keeps going", 10)
	if len([]rune(got)) > 11 {
		t.Errorf("not truncated: %q", got)
	}
	if got[len(got)-len("…"):] != "…" {
		t.Errorf("missing ellipsis: %q", got)
	}
	if got := TruncateSnippet("anything", 0); got != "anything" {
		t.Errorf("zero limit must be a no-op, got %q", got)
	}
}
