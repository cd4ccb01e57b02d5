package cutoff

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed program_groups.yaml
var defaultCatalogYAML []byte

// ProgramSet is the set of programs a group admits. The zero value is an
// inactive filter that lets every program through.
type ProgramSet struct {
	members map[string]struct{}
}

func NewProgramSet(programs ...string) ProgramSet {
	if len(programs) == 0 {
		return ProgramSet{}
	}
	members := make(map[string]struct{}, len(programs))
	for _, p := range programs {
		members[NormalizeName(p)] = struct{}{}
	}
	return ProgramSet{members: members}
}

// Active reports whether the set filters anything.
func (p ProgramSet) Active() bool {
	return len(p.members) > 0
}

func (p ProgramSet) Contains(program string) bool {
	_, ok := p.members[program]
	return ok
}

// Allows is Contains for an active set and always true otherwise.
func (p ProgramSet) Allows(program string) bool {
	return !p.Active() || p.Contains(program)
}

func (p ProgramSet) Len() int {
	return len(p.members)
}

// ProgramGroup is a named bucket of program names.
type ProgramGroup struct {
	Name     string   `yaml:"name" json:"name"`
	Programs []string `yaml:"programs" json:"programs"`
}

type catalogFile struct {
	Groups []ProgramGroup `yaml:"groups"`
}

// Catalog maps group names to program sets. It is read-only after construction.
type Catalog struct {
	groups []ProgramGroup
	sets   map[string]ProgramSet
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode program groups: %w", err)
	}

	c := &Catalog{sets: make(map[string]ProgramSet, len(file.Groups))}
	for _, g := range file.Groups {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			return nil, fmt.Errorf("program group without a name")
		}
		if _, dup := c.sets[name]; dup {
			return nil, fmt.Errorf("duplicate program group %q", name)
		}
		if len(g.Programs) == 0 {
			return nil, fmt.Errorf("program group %q has no programs", name)
		}
		g.Name = name
		c.groups = append(c.groups, g)
		c.sets[name] = NewProgramSet(g.Programs...)
	}
	return c, nil
}

// LoadCatalog reads a catalog file from disk.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program groups %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// DefaultCatalog returns the built-in IT, EC and TRENDING groups.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// Resolve returns the programs of the named group. An empty or unknown name
// resolves to an inactive set, never an error.
func (c *Catalog) Resolve(name string) ProgramSet {
	if c == nil {
		return ProgramSet{}
	}
	return c.sets[strings.TrimSpace(name)]
}

func (c *Catalog) Has(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c.sets[strings.TrimSpace(name)]
	return ok
}

// Groups returns the groups in file order.
func (c *Catalog) Groups() []ProgramGroup {
	if c == nil {
		return nil
	}
	out := make([]ProgramGroup, len(c.groups))
	copy(out, c.groups)
	return out
}
