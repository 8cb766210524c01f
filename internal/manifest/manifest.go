// Package manifest loads project manifests: YAML files describing a
// project and the work packets it contains. Manifests are how projects
// enter the queue from the command line.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/wiggum/internal/packet"
)

// Packet is the manifest representation of a single work packet.
type Packet struct {
	// ID is optional; one is minted when omitted.
	ID string `yaml:"id,omitempty"`

	// Title is a short human-readable summary. Required.
	Title string `yaml:"title"`

	// Description is the full prompt-quality description of the work.
	Description string `yaml:"description,omitempty"`

	// Criteria are the acceptance criteria the generated code must meet.
	Criteria []string `yaml:"criteria,omitempty"`
}

// Manifest is the on-disk representation of a project.
type Manifest struct {
	// ID is optional; one is minted when omitted.
	ID string `yaml:"id,omitempty"`

	// Name is the human-readable project name. Required.
	Name string `yaml:"name"`

	// Repo identifies the repository changes are applied to, either
	// owner/name for hosted repositories or a local path.
	Repo string `yaml:"repo,omitempty"`

	// Packets are the work packets in execution-relevant authored order.
	// At least one is required.
	Packets []Packet `yaml:"packets"`
}

// Load reads and parses a manifest file, validates it, and converts it
// to a project ready to enqueue.
func Load(path string) (*packet.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return Parse(data)
}

// Parse parses manifest bytes, validates them, and converts to a
// project. Unknown fields are rejected to catch typos in hand-written
// manifests.
func Parse(data []byte) (*packet.Project, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	if errs := m.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid manifest: %s", strings.Join(errs, "; "))
	}

	return m.Project(), nil
}

// Validate returns human-readable messages for every problem found.
func (m *Manifest) Validate() []string {
	var errs []string

	if strings.TrimSpace(m.Name) == "" {
		errs = append(errs, "name is required")
	}
	if len(m.Packets) == 0 {
		errs = append(errs, "at least one packet is required")
	}

	seen := make(map[string]int)
	for i, p := range m.Packets {
		if strings.TrimSpace(p.Title) == "" {
			errs = append(errs, fmt.Sprintf("packets[%d]: title is required", i))
		}
		if p.ID != "" {
			if prev, ok := seen[p.ID]; ok {
				errs = append(errs, fmt.Sprintf("packets[%d]: duplicate id %q (first used by packets[%d])", i, p.ID, prev))
			} else {
				seen[p.ID] = i
			}
		}
		for j, c := range p.Criteria {
			if strings.TrimSpace(c) == "" {
				errs = append(errs, fmt.Sprintf("packets[%d].criteria[%d]: cannot be empty", i, j))
			}
		}
	}

	return errs
}

// Project converts a validated manifest to the runtime model. Missing
// ids are minted and all packets start queued.
func (m *Manifest) Project() *packet.Project {
	p := &packet.Project{
		ID:      m.ID,
		Name:    m.Name,
		RepoRef: m.Repo,
	}
	if p.ID == "" {
		p.ID = packet.NewID()
	}

	for _, mp := range m.Packets {
		wp := packet.WorkPacket{
			ID:                 mp.ID,
			Title:              mp.Title,
			Description:        mp.Description,
			AcceptanceCriteria: append([]string(nil), mp.Criteria...),
			Status:             packet.StatusQueued,
		}
		if wp.ID == "" {
			wp.ID = packet.NewID()
		}
		p.Packets = append(p.Packets, wp)
	}

	return p
}
