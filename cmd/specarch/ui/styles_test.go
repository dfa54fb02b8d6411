package ui

import (
	"strings"
	"testing"
)

func TestDetectTheme(t *testing.T) {
	t.Setenv("COLORFGBG", "")
	t.Setenv("SPECARCH_DARK_MODE", "1")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme when SPECARCH_DARK_MODE=1")
	}

	t.Setenv("SPECARCH_DARK_MODE", "")
	if DetectTheme().IsDark {
		t.Fatalf("expected light theme when SPECARCH_DARK_MODE is unset")
	}

	t.Setenv("COLORFGBG", "15;0")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme for COLORFGBG background 0")
	}
}

func TestRenderDivider(t *testing.T) {
	s := NewStyles(LightTheme())
	if got := s.RenderDivider(4); !strings.Contains(got, "────") {
		t.Fatalf("divider = %q", got)
	}
	if got := s.RenderDivider(0); !strings.Contains(got, "─") {
		t.Fatalf("divider with zero width = %q", got)
	}
}
