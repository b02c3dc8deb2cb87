package taxonomy

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a taxonomy.
//
// Example:
//
//	labels:
//	  - {id: 0, name: background, trainId: 0, category: void, ignoreInEval: true}
//	  - {id: 1, name: car, trainId: 1, category: vehicle, hasInstances: true}
//	avgClassSize:
//	  car: 12794.02
type File struct {
	Labels       []Label            `yaml:"labels"`
	AvgClassSize map[string]float64 `yaml:"avgClassSize"`
}

// Load reads a YAML taxonomy file.
//
// Arguments:
//   - path: Path to the YAML file.
//
// Returns:
//   - *Taxonomy: The validated taxonomy.
//   - error: An error if the file cannot be read, parsed or validated.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading taxonomy file %s", path)
	}
	return Parse(data)
}

// Parse builds a taxonomy from YAML bytes.
func Parse(data []byte) (*Taxonomy, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parsing taxonomy YAML")
	}
	return New(f.Labels, f.AvgClassSize)
}

// Save writes the taxonomy to a YAML file that Load can read back.
func (t *Taxonomy) Save(path string) error {
	f := File{
		Labels:       t.Labels(),
		AvgClassSize: make(map[string]float64, len(t.avgClassSize)),
	}
	for name, size := range t.avgClassSize {
		f.AvgClassSize[name] = size
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "marshaling taxonomy YAML")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing taxonomy file %s", path)
	}
	return nil
}
