package darwincore

import (
	"strings"
	"testing"
)

func TestSystemPrompt(t *testing.T) {
	prompt := SystemPrompt()

	for _, term := range Terms {
		if !strings.Contains(prompt, "- "+term.Name+": ") {
			t.Errorf("prompt missing term %s", term.Name)
		}
	}
	if !strings.HasSuffix(prompt, "I respond in minified JSON.") {
		t.Error("prompt should end with the output instruction")
	}
	if strings.Contains(prompt, "{{") {
		t.Error("template was not rendered")
	}
}

func TestTermNames(t *testing.T) {
	names := TermNames()
	if len(names) != len(Terms) {
		t.Fatalf("expected %d names, got %d", len(Terms), len(names))
	}
	if names[0] != "scientificName" {
		t.Errorf("expected scientificName first, got %s", names[0])
	}
}
