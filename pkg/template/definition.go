package template

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed definitions/*.yaml
var builtinDefinitions embed.FS

// ParameterType is the ARM type of an offer parameter
type ParameterType int

const (
	TypeString ParameterType = iota
	TypeInt
	TypeBool
	TypeSecureString
)

// String returns the ARM representation of the parameter type
func (t ParameterType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	case TypeSecureString:
		return "securestring"
	default:
		return "unknown"
	}
}

// UnmarshalYAML implements custom YAML unmarshaling for ParameterType
func (t *ParameterType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}

	switch strings.ToLower(s) {
	case "string":
		*t = TypeString
	case "int":
		*t = TypeInt
	case "bool":
		*t = TypeBool
	case "securestring":
		*t = TypeSecureString
	default:
		return fmt.Errorf("invalid parameter type: %s", s)
	}

	return nil
}

// Parameter defines one deployment parameter of an offer
type Parameter struct {
	Name         string        `yaml:"name"`
	Type         ParameterType `yaml:"type"`
	Label        string        `yaml:"label"`
	Description  string        `yaml:"description,omitempty"`
	Default      interface{}   `yaml:"default,omitempty"`
	Allowed      []interface{} `yaml:"allowed,omitempty"`
	MinLength    int           `yaml:"min_length,omitempty"`
	MaxLength    int           `yaml:"max_length,omitempty"`
	PlaceInBasic bool          `yaml:"basics,omitempty"`
}

// Resource defines one ARM resource emitted into the main template
type Resource struct {
	Type       string                 `yaml:"type"`
	APIVersion string                 `yaml:"api_version"`
	Name       string                 `yaml:"name"`
	Location   string                 `yaml:"location,omitempty"`
	SKU        map[string]interface{} `yaml:"sku,omitempty"`
	Kind       string                 `yaml:"kind,omitempty"`
	Properties map[string]interface{} `yaml:"properties,omitempty"`
	DependsOn  []string               `yaml:"depends_on,omitempty"`
}

// Output defines one ARM template output
type Output struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

// Definition is a parameterized description of a marketplace offer from
// which the deployment artifacts are rendered.
type Definition struct {
	Name        string      `yaml:"name"`
	DisplayName string      `yaml:"display_name"`
	Publisher   string      `yaml:"publisher"`
	Description string      `yaml:"description,omitempty"`
	Version     string      `yaml:"version"`
	Parameters  []Parameter `yaml:"parameters"`
	Resources   []Resource  `yaml:"resources"`
	Outputs     []Output    `yaml:"outputs,omitempty"`
}

// Validate checks the definition for the mistakes the external validator
// would reject much later.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("definition has no name")
	}
	if d.Publisher == "" {
		return fmt.Errorf("definition %s has no publisher", d.Name)
	}
	if d.Version == "" {
		return fmt.Errorf("definition %s has no version", d.Name)
	}
	if len(d.Resources) == 0 {
		return fmt.Errorf("definition %s declares no resources", d.Name)
	}

	seen := make(map[string]bool)
	for _, p := range d.Parameters {
		if p.Name == "" {
			return fmt.Errorf("definition %s has a parameter with no name", d.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("definition %s declares parameter %s twice", d.Name, p.Name)
		}
		seen[p.Name] = true
	}

	for _, r := range d.Resources {
		if r.Type == "" || r.APIVersion == "" || r.Name == "" {
			return fmt.Errorf("definition %s has a resource missing type, api_version or name", d.Name)
		}
	}

	return nil
}

// LoadDefinition parses a single offer definition from YAML
func LoadDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadDefinitionFile loads an offer definition from a YAML file on disk
func LoadDefinitionFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}
	return LoadDefinition(data)
}

// LoadBuiltinDefinitions loads the offer definitions shipped with the tool,
// sorted by name.
func LoadBuiltinDefinitions() ([]*Definition, error) {
	entries, err := fs.Glob(builtinDefinitions, "definitions/*.yaml")
	if err != nil {
		return nil, err
	}

	var defs []*Definition
	for _, entry := range entries {
		data, err := builtinDefinitions.ReadFile(entry)
		if err != nil {
			return nil, fmt.Errorf("failed to read builtin definition %s: %w", entry, err)
		}
		def, err := LoadDefinition(data)
		if err != nil {
			return nil, fmt.Errorf("builtin definition %s: %w", entry, err)
		}
		defs = append(defs, def)
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

// FindBuiltinDefinition returns the builtin definition with the given name
func FindBuiltinDefinition(name string) (*Definition, error) {
	defs, err := LoadBuiltinDefinitions()
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		if def.Name == name {
			return def, nil
		}
	}
	return nil, fmt.Errorf("no builtin definition named %s", name)
}
