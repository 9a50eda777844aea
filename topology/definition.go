package topology

import (
	"bytes"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/flowkit/errors"
)

// Definition describes a pipeline graph.
type Definition struct {
	Name       string          `yaml:"name" validate:"required,name"`
	Runner     RunnerSpec      `yaml:"runner"`
	Processors []ProcessorSpec `yaml:"processors" validate:"min=1,dive"`
}

// RunnerSpec configures the runner of a built pipeline.
type RunnerSpec struct {
	SuppressEmpty bool `yaml:"suppress_empty"`
}

// ProcessorSpec describes one processor.
type ProcessorSpec struct {
	Name      string `yaml:"name" validate:"required,name"`
	Component string `yaml:"component" validate:"required"`
	// Source marks the processor as a pipeline source.
	Source bool `yaml:"source"`
	// Inputs are "processor" or "processor:channel" references.
	Inputs []string `yaml:"inputs" validate:"dive,ref"`
	Params Params   `yaml:"params"`
}

// Parse decodes a definition. Unknown keys are rejected.
func Parse(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, errors.InvalidConfig("topology: empty definition")
		}
		return nil, errors.InvalidConfig("topology: parsing definition").WithCause(err)
	}
	return &def, nil
}

// Load reads and parses the definition at path.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.NotFound("topology file", path)
		}
		return nil, errors.InvalidConfig("topology: reading "+path).WithCause(err)
	}
	def, err := Parse(data)
	if appErr, ok := errors.AsAppError(err); ok {
		return nil, appErr.WithDetail("path", path)
	}
	return def, err
}

// Loader loads definitions by name.
type Loader interface {
	Load(name string) (*Definition, error)
}

// FileLoader loads definitions from YAML files on disk.
type FileLoader struct {
	dirs []string
}

// NewFileLoader creates a loader that searches dirs in order.
func NewFileLoader(dirs ...string) *FileLoader {
	return &FileLoader{dirs: dirs}
}

// Load looks for {name}.yaml and {name}.yml in each directory and its
// immediate subdirectories. A file that exists but does not parse is an
// error; the search does not move on.
func (l *FileLoader) Load(name string) (*Definition, error) {
	for _, dir := range l.dirs {
		for _, ext := range []string{".yaml", ".yml"} {
			candidates := []string{filepath.Join(dir, name+ext)}
			matches, _ := filepath.Glob(filepath.Join(dir, "*", name+ext))
			candidates = append(candidates, matches...)

			for _, path := range candidates {
				if _, err := os.Stat(path); err != nil {
					continue
				}
				return Load(path)
			}
		}
	}
	return nil, errors.NotFound("topology", name).WithDetail("dirs", l.dirs)
}
