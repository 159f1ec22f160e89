package ui

import "testing"

func TestRender_NoColor(t *testing.T) {
	Init("never")

	renders := map[string]func(string) string{
		"accent": RenderAccent,
		"pass":   RenderPass,
		"warn":   RenderWarn,
		"fail":   RenderFail,
		"muted":  RenderMuted,
	}
	for name, render := range renders {
		if got := render("unit 2"); got != "unit 2" {
			t.Errorf("%s render = %q, want plain text", name, got)
		}
	}
}
