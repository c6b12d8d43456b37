package ui

import (
	"bytes"
	"testing"
)

func TestRender(t *testing.T) {
	t.Cleanup(func() { noColor = false })

	SetColor(true)
	if got, want := RenderFail("x"), "\x1b[38;5;203mx\x1b[0m"; got != want {
		t.Errorf("RenderFail = %q, want %q", got, want)
	}

	ForceNoColor()
	for name, fn := range map[string]func(string) string{
		"accent": RenderAccent, "muted": RenderMuted, "command": RenderCommand,
		"pass": RenderPass, "warn": RenderWarn, "fail": RenderFail,
	} {
		if got := fn("plain"); got != "plain" {
			t.Errorf("%s with color disabled = %q", name, got)
		}
	}
}

func TestShouldUseColor(t *testing.T) {
	for _, tc := range []struct {
		name                   string
		noColor, force, clicol string
		want                   bool
	}{
		{"NoColorWins", "1", "1", "", false},
		{"Forced", "", "1", "", true},
		{"Disabled", "", "", "0", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", tc.noColor)
			t.Setenv("CLICOLOR_FORCE", tc.force)
			t.Setenv("CLICOLOR", tc.clicol)
			if got := ShouldUseColor(); got != tc.want {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestShouldUseColorFor_NonFile(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("FORMS_NO_COLOR", "")
	t.Setenv("CLICOLOR", "")

	t.Setenv("CLICOLOR_FORCE", "")
	if ShouldUseColorFor(&bytes.Buffer{}) {
		t.Error("buffer should not get color")
	}
	t.Setenv("CLICOLOR_FORCE", "1")
	if !ShouldUseColorFor(&bytes.Buffer{}) {
		t.Error("CLICOLOR_FORCE should force color on a buffer")
	}
}

func TestShouldUseColor_FormsNoColor(t *testing.T) {
	t.Setenv("FORMS_NO_COLOR", "1")
	t.Setenv("CLICOLOR_FORCE", "1")
	if ShouldUseColor() {
		t.Error("FORMS_NO_COLOR should win over CLICOLOR_FORCE")
	}
}
