package browser

import (
	"testing"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	"github.com/stretchr/testify/assert"
)

func TestApplyStealthFlags(t *testing.T) {
	l := applyStealthFlags(launcher.New())

	assert.False(t, l.Has("enable-automation"))
	assert.Equal(t, "AutomationControlled", l.Get("disable-blink-features"))
	for _, f := range StealthFlags {
		assert.True(t, l.Has(f.Name), "missing --%s", f.Name)
	}
}

func TestStealthScriptCoversCommonSignals(t *testing.T) {
	for _, needle := range []string{"'webdriver'", "'plugins'", "'languages'", "chrome.runtime", "'notifications'"} {
		assert.Contains(t, StealthScript, needle)
	}
}

func TestStealthScripts(t *testing.T) {
	assert.Equal(t, []string{StealthScript}, stealthScripts(false))
	assert.Equal(t, []string{StealthScript, stealth.JS}, stealthScripts(true))
}
