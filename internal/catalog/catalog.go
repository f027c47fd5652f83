// Package catalog loads integration catalogs: YAML documents that declare the
// integrations Mission Control should track.
//
//	kind: IntegrationCatalog
//	metadata:
//	  name: fleet
//	integrations:
//	  - name: OpenAI
//	    type: api_key
//	    provider: openai
//	    credential_source: .env:OPENAI_API_KEY
//	environments:
//	  staging:
//	    OpenAI:
//	      credential_source: 1password:Staging/OpenAI
package catalog

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"missioncontrol/internal/credential"
	"missioncontrol/internal/errors"
	"missioncontrol/internal/integration"
	"missioncontrol/internal/provider"
	"missioncontrol/internal/store"
)

const Kind = "IntegrationCatalog"

type Catalog struct {
	Kind         string                         `yaml:"kind"`
	Metadata     Metadata                       `yaml:"metadata"`
	Integrations []Entry                        `yaml:"integrations"`
	Environments map[string]map[string]Override `yaml:"environments,omitempty"`
}

type Metadata struct {
	Name string `yaml:"name"`
}

type Entry struct {
	Name             string `yaml:"name"`
	Type             string `yaml:"type"`
	Provider         string `yaml:"provider,omitempty"`
	CredentialSource string `yaml:"credential_source"`
	Description      string `yaml:"description,omitempty"`
}

// Override replaces the non-empty fields of the entry with the same name.
type Override struct {
	Type             string `yaml:"type,omitempty"`
	Provider         string `yaml:"provider,omitempty"`
	CredentialSource string `yaml:"credential_source,omitempty"`
	Description      string `yaml:"description,omitempty"`
}

var knownTypes = []string{ //nolint:gochecknoglobals // closed set
	store.TypeAPIKey, store.TypeCLIAuth, store.TypeCredentialProvider,
	store.TypeMCPPlugin, store.TypeMCPServer, store.TypeWebhook, store.TypeCLITool,
}

// LoadYAML parses a catalog document.
func LoadYAML(b []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Catalog{}, fmt.Errorf("yaml parse: %w", err)
	}
	return c, nil
}

// ApplyEnvOverrides returns a copy of c with environments.<env> merged into
// the matching entries. Unknown environments leave c unchanged.
func ApplyEnvOverrides(c Catalog, env string) Catalog {
	out := c
	out.Integrations = slices.Clone(c.Integrations)
	overrides, ok := c.Environments[env]
	if !ok {
		return out
	}
	for i, e := range out.Integrations {
		ov, ok := overrides[e.Name]
		if !ok {
			continue
		}
		if ov.Type != "" {
			e.Type = ov.Type
		}
		if ov.Provider != "" {
			e.Provider = ov.Provider
		}
		if ov.CredentialSource != "" {
			e.CredentialSource = ov.CredentialSource
		}
		if ov.Description != "" {
			e.Description = ov.Description
		}
		out.Integrations[i] = e
	}
	return out
}

// Validate rejects catalogs that cannot be imported and returns warnings for
// entries that import fine but will not test the way their author expects.
func Validate(c Catalog) ([]string, error) {
	if c.Kind != Kind {
		return nil, fmt.Errorf("kind must be %s, got %q", Kind, c.Kind)
	}
	if strings.TrimSpace(c.Metadata.Name) == "" {
		return nil, fmt.Errorf("missing required field: metadata.name")
	}
	if len(c.Integrations) == 0 {
		return nil, fmt.Errorf("integrations must be a non-empty list")
	}

	var warnings []string
	seen := make(map[string]int, len(c.Integrations))
	for i, e := range c.Integrations {
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("integrations[%d].name must be a non-empty string", i)
		}
		if j, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("integrations[%d].name %q duplicates integrations[%d]", i, e.Name, j)
		}
		seen[e.Name] = i
		if !slices.Contains(knownTypes, e.Type) {
			return nil, fmt.Errorf("integrations[%d].type must be one of %s, got %q", i, strings.Join(knownTypes, ", "), e.Type)
		}

		method := credential.SourceMethod(e.CredentialSource)
		switch {
		case e.Type == store.TypeCredentialProvider && e.Provider == integration.OnePasswordProvider:
		case method == credential.MethodUnknown:
			warnings = append(warnings, fmt.Sprintf("%s: credential_source %q is not recognized; tests will fail", e.Name, e.CredentialSource))
		case e.Type == store.TypeCLIAuth && method != credential.MethodCLI && method != credential.MethodBuiltIn:
			warnings = append(warnings, fmt.Sprintf("%s: cli_auth with a %s source will test as warn", e.Name, method))
		case e.Provider != "" && method != credential.MethodBuiltIn && method != credential.MethodCLI && !slices.Contains(provider.Providers(), e.Provider):
			warnings = append(warnings, fmt.Sprintf("%s: provider %q has no probe; only presence is checked", e.Name, e.Provider))
		}
	}
	for env, overrides := range c.Environments {
		for name := range overrides {
			if _, ok := seen[name]; !ok {
				warnings = append(warnings, fmt.Sprintf("environments.%s.%s matches no integration", env, name))
			}
		}
	}
	slices.Sort(warnings)
	return warnings, nil
}

// Change is one planned catalog action.
type Change struct {
	Action string            `json:"action"` // create, update, unchanged
	Name   string            `json:"name"`
	Fields []string          `json:"fields,omitempty"`
	Entry  store.Integration `json:"-"`
}

// Plan compares c with the integrations already stored, keyed by name.
// Integrations absent from the catalog are left alone.
func Plan(c Catalog, existing []store.Integration) []Change {
	byName := make(map[string]store.Integration, len(existing))
	for _, in := range existing {
		byName[in.Name] = in
	}

	out := make([]Change, 0, len(c.Integrations))
	for _, e := range c.Integrations {
		want := store.Integration{
			Name:             e.Name,
			Type:             e.Type,
			Provider:         e.Provider,
			CredentialSource: e.CredentialSource,
			Description:      e.Description,
		}
		have, ok := byName[e.Name]
		if !ok {
			out = append(out, Change{Action: "create", Name: e.Name, Entry: want})
			continue
		}
		want.ID = have.ID
		fields := diffFields(have, want)
		action := "update"
		if len(fields) == 0 {
			action = "unchanged"
		}
		out = append(out, Change{Action: action, Name: e.Name, Fields: fields, Entry: want})
	}
	return out
}

func diffFields(have, want store.Integration) []string {
	var fields []string
	if have.Type != want.Type {
		fields = append(fields, "type")
	}
	if have.Provider != want.Provider {
		fields = append(fields, "provider")
	}
	if have.CredentialSource != want.CredentialSource {
		fields = append(fields, "credential_source")
	}
	if have.Description != want.Description {
		fields = append(fields, "description")
	}
	return fields
}

// Upserter persists catalog entries.
type Upserter interface {
	UpsertIntegration(ctx context.Context, in store.Integration) (string, error)
}

// Apply writes every create and update in changes and returns how many it
// wrote. It stops at the first failure.
func Apply(ctx context.Context, st Upserter, changes []Change) (int, error) {
	n := 0
	for _, ch := range changes {
		if ch.Action == "unchanged" {
			continue
		}
		if _, err := st.UpsertIntegration(ctx, ch.Entry); err != nil {
			return n, errors.Wrapf(err, "upsert %s", ch.Name)
		}
		n++
	}
	return n, nil
}
