package help

import (
	"strings"
	"testing"
)

func TestViewRendersKeys(t *testing.T) {
	m := New()
	v := m.View(100)
	for _, want := range []string{"uisync", "resume", "quit"} {
		if !strings.Contains(v, want) {
			t.Errorf("help missing %q", want)
		}
	}
	if m.View(100) != v {
		t.Error("same width rendered differently")
	}
}
