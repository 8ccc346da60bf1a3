package collector

import (
	"testing"

	shared "FleetGuard/internal/shared/models"

	"github.com/stretchr/testify/assert"
)

func TestParseServices(t *testing.T) {
	units := []byte(`nginx.service            loaded active   running A high performance web server
cups.service             loaded inactive dead    CUPS Scheduler
session-2.scope          loaded active   running Session 2
`)
	files := []byte(`nginx.service   enabled  enabled
cups.service    disabled enabled
`)

	services := ParseServices(units, ParseUnitFiles(files))

	assert.Equal(t, []shared.ServiceInfo{
		{Name: "nginx", Status: "running", Enabled: true},
		{Name: "cups", Status: "dead", Enabled: false},
	}, services)
}

func TestParseServicesEmpty(t *testing.T) {
	services := ParseServices(nil, nil)
	assert.NotNil(t, services)
	assert.Empty(t, services)
}

func TestParseDpkg(t *testing.T) {
	out := []byte("zoom\t5.17.1\tZoom Video Communications\ncurl\t8.5.0\t\n\n")

	assert.Equal(t, []shared.SoftwareItem{
		{Name: "zoom", Version: "5.17.1", Publisher: "Zoom Video Communications"},
		{Name: "curl", Version: "8.5.0"},
	}, ParseDpkg(out))
}

func TestParseVSCodeExtensions(t *testing.T) {
	out := []byte("ms-python.python@2024.2.1\ngolang.go@0.41.0\nno.version\n")

	assert.Equal(t, []shared.ExtensionInfo{
		{ID: "ms-python.python", Category: "vscode", Version: "2024.2.1"},
		{ID: "golang.go", Category: "vscode", Version: "0.41.0"},
		{ID: "no.version", Category: "vscode"},
	}, ParseVSCodeExtensions(out))
}
