package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDeviceID(t *testing.T) {
	cases := map[string]bool{
		"d1":                true,
		"ws-042.corp.local": true,
		"build_agent_7":     true,
		"":                  false,
		"has space":         false,
		"slash/inside":      false,
	}

	for input, want := range cases {
		assert.Equal(t, want, ValidateDeviceID(input), "device id %q", input)
	}

	assert.False(t, ValidateDeviceID(strings.Repeat("a", 129)))
}

func TestValidateName(t *testing.T) {
	assert.True(t, ValidateName("nginx"))
	assert.True(t, ValidateName("ms-python.python"))
	assert.True(t, ValidateName("Google Chrome"))
	assert.False(t, ValidateName("   "))
	assert.False(t, ValidateName("../etc"))
	assert.False(t, ValidateName("bad\nname"))
	assert.False(t, ValidateName("--help"))
	assert.False(t, ValidateName(" -rf"))
	assert.True(t, ValidateName("x-ray"))
}

func TestValidateOneOf(t *testing.T) {
	assert.True(t, ValidateOneOf("stop", "start", "stop"))
	assert.False(t, ValidateOneOf("pause", "start", "stop"))
}
