package ui

import "testing"

// Test output runs without a terminal on stdout, so every renderer must
// pass text through untouched.
func TestRenderPlainWithoutTerminal(t *testing.T) {
	for name, fn := range map[string]func(string) string{
		"pass":   RenderPass,
		"warn":   RenderWarn,
		"fail":   RenderFail,
		"accent": RenderAccent,
		"muted":  RenderMuted,
	} {
		if got := fn("marker"); got != "marker" {
			t.Errorf("%s renderer = %q, want unstyled text", name, got)
		}
	}
}

func TestSetNoColor(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	if colorEnabled() {
		t.Error("colorEnabled() with --no-color set")
	}
	if got := RenderAccent("x"); got != "x" {
		t.Errorf("RenderAccent = %q", got)
	}
}
