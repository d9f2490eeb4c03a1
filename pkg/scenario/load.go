package scenario

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a scenario file.
//
//	scenarios:
//	  - name: Loads the app
//	    steps:
//	      - action: navigate
//	      - action: exists
//	        selector: section.todoapp
//	        expect: true
type File struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// Load decodes and validates scenarios from r.
func Load(r io.Reader) ([]Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("scenario file is empty")
		}
		return nil, fmt.Errorf("failed to decode scenarios: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Scenarios))
	for _, sc := range f.Scenarios {
		if err := sc.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[sc.Name]; dup {
			return nil, fmt.Errorf("duplicate scenario name %q", sc.Name)
		}
		seen[sc.Name] = struct{}{}
	}
	return f.Scenarios, nil
}

// LoadFile reads scenarios from the YAML file at path.
func LoadFile(path string) ([]Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario file: %w", err)
	}
	defer f.Close()

	scenarios, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenarios, nil
}
