package crew

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/brand_research.yaml
var defaultDefinition []byte

// ProcessSequential runs tasks one after another in definition order.
const ProcessSequential = "sequential"

// AgentDefinition describes a crew agent.
type AgentDefinition struct {
	Name      string   `yaml:"name"`
	Role      string   `yaml:"role"`
	Goal      string   `yaml:"goal"`
	Backstory string   `yaml:"backstory"`
	Tools     []string `yaml:"tools"`
}

// TaskDefinition describes one crew task. Description and ExpectedOutput are
// text/template strings rendered with the kickoff inputs.
type TaskDefinition struct {
	Name           string `yaml:"name"`
	Agent          string `yaml:"agent"`
	Description    string `yaml:"description"`
	ExpectedOutput string `yaml:"expected_output"`
}

// Definition is a complete crew configuration.
type Definition struct {
	Name    string            `yaml:"name"`
	Process string            `yaml:"process"`
	Agents  []AgentDefinition `yaml:"agents"`
	Tasks   []TaskDefinition  `yaml:"tasks"`
}

// DefaultDefinition returns the embedded brand research crew.
func DefaultDefinition() (Definition, error) {
	return ParseDefinition(defaultDefinition)
}

// LoadDefinition reads a crew definition from a YAML file.
func LoadDefinition(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("read crew definition: %w", err)
	}
	return ParseDefinition(data)
}

// ParseDefinition decodes and validates a YAML crew definition.
func ParseDefinition(data []byte) (Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("parse crew definition: %w", err)
	}

	if def.Process == "" {
		def.Process = ProcessSequential
	}

	if err := def.Validate(); err != nil {
		return Definition{}, err
	}

	return def, nil
}

// Agent returns the agent definition with the given name.
func (d Definition) Agent(name string) (AgentDefinition, bool) {
	for _, a := range d.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return AgentDefinition{}, false
}

// Validate checks names are unique and every task references a known agent.
func (d Definition) Validate() error {
	if d.Process != ProcessSequential {
		return fmt.Errorf("unsupported crew process %q", d.Process)
	}

	if len(d.Tasks) == 0 {
		return errors.New("crew definition has no tasks")
	}

	agents := make(map[string]struct{}, len(d.Agents))
	for _, a := range d.Agents {
		if a.Name == "" {
			return errors.New("crew agent without name")
		}
		if _, dup := agents[a.Name]; dup {
			return fmt.Errorf("duplicate crew agent %q", a.Name)
		}
		agents[a.Name] = struct{}{}
	}

	tasks := make(map[string]struct{}, len(d.Tasks))
	for _, t := range d.Tasks {
		if t.Name == "" {
			return errors.New("crew task without name")
		}
		if _, dup := tasks[t.Name]; dup {
			return fmt.Errorf("duplicate crew task %q", t.Name)
		}
		tasks[t.Name] = struct{}{}

		if _, ok := agents[t.Agent]; !ok {
			return fmt.Errorf("task %q references unknown agent %q", t.Name, t.Agent)
		}
	}

	return nil
}
