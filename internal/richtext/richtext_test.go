package richtext

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	s := NewService()
	html, err := s.Render("# Plan\n\nShip the [brief](https://example.com) by ~~Friday~~ Monday.")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(html, "<h1") {
		t.Fatalf("heading not rendered: %q", html)
	}
	if !strings.Contains(html, `<a href="https://example.com"`) {
		t.Fatalf("link not rendered: %q", html)
	}
	if !strings.Contains(html, "<del>") {
		t.Fatalf("strikethrough extension not active: %q", html)
	}
}

func TestSummarize(t *testing.T) {
	s := NewService()
	summary, err := s.Summarize("## Checklist\n\nRun `make deploy` and read [docs](https://example.com).")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if !summary.HasHeading || !summary.HasCode || !summary.HasLink {
		t.Fatalf("summary flags wrong: %+v", summary)
	}
	if !strings.Contains(summary.PlainText, "Checklist") || !strings.Contains(summary.PlainText, "read") {
		t.Fatalf("plain text extraction wrong: %q", summary.PlainText)
	}

	summary, err = s.Summarize("just words")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if summary.HasHeading || summary.HasCode || summary.HasLink {
		t.Fatalf("plain paragraph should set no flags: %+v", summary)
	}
}
