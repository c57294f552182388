// Package settings loads the per-API toggles and output routing used by the
// enrichment pipeline.
package settings

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// API names recognised by the pipeline.
const (
	APISkipTraceSearch  = "skiptrace_search"
	APISkipTraceDetails = "skiptrace_details"
	APITelnyx           = "telnyx"
	APIPostal           = "postal"
)

// Output destinations.
const (
	DestinationNone       = "none"
	DestinationNotion     = "notion"
	DestinationSalesforce = "salesforce"
	DestinationWebhook    = "webhook"
)

// API is one entry under "apis".
type API struct {
	Enabled   *bool    `yaml:"enabled"`
	DependsOn []string `yaml:"depends_on"`
}

// File is the on-disk shape of settings.yaml.
type File struct {
	APIs   map[string]API `yaml:"apis"`
	Output struct {
		Destination string `yaml:"destination"`
	} `yaml:"output"`
}

// Provider answers enablement and routing questions. APIs missing from the
// file are enabled.
type Provider struct {
	apis        map[string]API
	destination string
}

// Load reads settings from path. A missing file yields a provider with every
// API enabled and defaultDestination as the output route.
func Load(path, defaultDestination string) (*Provider, error) {
	p := &Provider{apis: map[string]API{}, destination: normalizeDestination(defaultDestination)}
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "settings: read %s", path)
	}
	return Parse(data, defaultDestination)
}

// Parse builds a provider from YAML bytes.
func Parse(data []byte, defaultDestination string) (*Provider, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "settings: parse")
	}
	p := &Provider{apis: make(map[string]API, len(f.APIs)), destination: normalizeDestination(defaultDestination)}
	for name, api := range f.APIs {
		p.apis[strings.ToLower(name)] = api
	}
	if f.Output.Destination != "" {
		p.destination = normalizeDestination(f.Output.Destination)
	}
	return p, nil
}

// Static returns a provider with the given APIs disabled. Used by tests and
// by the serve command when no file is configured.
func Static(destination string, disabled ...string) *Provider {
	p := &Provider{apis: map[string]API{}, destination: normalizeDestination(destination)}
	off := false
	for _, name := range disabled {
		p.apis[strings.ToLower(name)] = API{Enabled: &off}
	}
	return p
}

// IsEnabled reports whether name and every API it depends on are enabled.
// Dependency cycles count as disabled.
func (p *Provider) IsEnabled(name string) bool {
	if p == nil {
		return true
	}
	return p.enabled(strings.ToLower(name), map[string]bool{})
}

func (p *Provider) enabled(name string, visiting map[string]bool) bool {
	if visiting[name] {
		return false
	}
	api, ok := p.apis[name]
	if !ok {
		return true
	}
	if api.Enabled != nil && !*api.Enabled {
		return false
	}
	visiting[name] = true
	defer delete(visiting, name)
	for _, dep := range api.DependsOn {
		if !p.enabled(strings.ToLower(dep), visiting) {
			return false
		}
	}
	return true
}

// DependsOn returns the declared dependencies of name.
func (p *Provider) DependsOn(name string) []string {
	if p == nil {
		return nil
	}
	return p.apis[strings.ToLower(name)].DependsOn
}

// Destination returns the configured output route.
func (p *Provider) Destination() string {
	if p == nil {
		return DestinationNone
	}
	return p.destination
}

func normalizeDestination(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	if d == "" {
		return DestinationNone
	}
	return d
}
