// Package discovery maintains a registry of remote worker agents found
// through their published get-info.json descriptors, with a skill index
// and an optional redis-backed descriptor cache.
package discovery

import (
	"fmt"
	"strings"
)

// Skill is one advertised capability of an agent.
type Skill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AgentDescriptor is the published identity of a remote agent, parsed
// from its get-info.json document.
type AgentDescriptor struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	URL             string         `json:"url"`
	Version         string         `json:"version"`
	ProtocolVersion string         `json:"protocolVersion"`
	Skills          []Skill        `json:"skills"`
	Capabilities    map[string]any `json:"capabilities"`
	ExtraData       map[string]any `json:"extraData"`
	AgentTrust      string         `json:"agentTrust"`
	Kind            string         `json:"kind"`
}

// normalize fills descriptor defaults after decoding.
func (d *AgentDescriptor) normalize() {
	if d.ProtocolVersion == "" {
		d.ProtocolVersion = "1.0"
	}
	if d.AgentTrust == "" {
		d.AgentTrust = "low"
	}
	if d.Kind == "" {
		d.Kind = "agent"
	}
}

// Validate checks the fields a descriptor cannot function without.
func (d *AgentDescriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("descriptor missing id")
	}
	if d.URL == "" {
		return fmt.Errorf("descriptor %s missing url", d.ID)
	}
	return nil
}

// SkillNames returns the names of all advertised skills.
func (d *AgentDescriptor) SkillNames() []string {
	names := make([]string, 0, len(d.Skills))
	for _, s := range d.Skills {
		names = append(names, s.Name)
	}
	return names
}

// HasSkill reports whether the agent advertises the named skill.
func (d *AgentDescriptor) HasSkill(name string) bool {
	for _, s := range d.Skills {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Specialization returns the extraData specialization hint, or "N/A".
func (d *AgentDescriptor) Specialization() string {
	if v, ok := d.ExtraData["specialization"].(string); ok && v != "" {
		return v
	}
	return "N/A"
}

// describe renders one descriptor block for Registry.Describe.
func (d *AgentDescriptor) describe(b *strings.Builder) {
	fmt.Fprintf(b, "\n  [%s] %s\n", d.ID, d.Name)
	fmt.Fprintf(b, "      Description: %s\n", d.Description)
	fmt.Fprintf(b, "      URL: %s\n", d.URL)
	fmt.Fprintf(b, "      Skills: %s\n", strings.Join(d.SkillNames(), ", "))
	fmt.Fprintf(b, "      Specialization: %s\n", d.Specialization())
	fmt.Fprintf(b, "      Trust Level: %s", d.AgentTrust)
}
