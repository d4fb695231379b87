package id

import (
	"strings"
	"testing"
)

func TestGenerator_Prefixes(t *testing.T) {
	g := New()

	msg := g.GenerateMessageID()
	if !strings.HasPrefix(msg, "em_") {
		t.Errorf("expected em_ prefix, got %s", msg)
	}
	if len(msg) != len("em_")+21 {
		t.Errorf("expected 21 character id, got %s", msg)
	}

	dialog := g.GenerateDialogID()
	if !strings.HasPrefix(dialog, "ed_") {
		t.Errorf("expected ed_ prefix, got %s", dialog)
	}
}

func TestGenerator_Unique(t *testing.T) {
	g := New()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := g.GenerateMessageID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
