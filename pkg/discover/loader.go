package discover

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/graphseer/pkg/entity"
)

// File is the top-level structure of a graphseer entity descriptor YAML file.
//
// Example:
//
//	version: 1
//	entities:
//	  - name: WorkOrder
//	    table: work_orders
//	    attributes: [id, title, description, status, technician_id]
//	    relations:
//	      - name: technician
//	        target: Technician
//	        local_key: technician_id
type File struct {
	// Version is the descriptor file format version. Currently always 1.
	Version int `yaml:"version,omitempty"`

	// Entities are the declared entity descriptors. Scope builders cannot be
	// expressed in YAML; attach them with [Registry.RegisterScope] after
	// import.
	Entities []entity.Descriptor `yaml:"entities"`
}

// LoadFile reads and parses an entity descriptor YAML file from disk.
// Returns a descriptive error if the file cannot be opened or parsed.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("discover: open entities file %q: %w", path, err)
	}
	defer f.Close()

	file, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("discover: parse entities file %q: %w", path, err)
	}
	return file, nil
}

// LoadFromReader parses descriptor YAML from an [io.Reader]. Unknown keys are
// rejected so typos surface at load time. The reader is consumed entirely;
// the caller is responsible for closing it.
func LoadFromReader(r io.Reader) (*File, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("discover: decode entities yaml: %w", err)
	}
	return &file, nil
}

// ImportFile registers every descriptor in file into reg. Returns the number
// of descriptors successfully registered. A registration error (including a
// duplicate name) aborts the import and returns the count so far.
func ImportFile(reg *Registry, file *File) (int, error) {
	if file == nil {
		return 0, fmt.Errorf("discover: entities file must not be nil")
	}
	count := 0
	for i := range file.Entities {
		if err := reg.Register(&file.Entities[i]); err != nil {
			return count, fmt.Errorf("discover: import entity at index %d (name %q): %w",
				i, file.Entities[i].Name, err)
		}
		count++
	}
	return count, nil
}
