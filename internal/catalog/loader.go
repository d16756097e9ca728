package catalog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/0ui-labs/fieldmatch/pkg/similarity"
)

// knownFieldTypes is used to warn about likely typos in catalog files.
// Values outside this list are still accepted.
var knownFieldTypes = []similarity.FieldType{
	similarity.FieldRating,
	similarity.FieldSelect,
	similarity.FieldText,
	similarity.FieldBoolean,
	similarity.FieldNumber,
	similarity.FieldDate,
}

// Load reads and parses a field catalog YAML file from disk.
// Returns a descriptive error if the file cannot be opened or parsed.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %q: %w", path, err)
	}
	defer f.Close()

	cf, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse %q: %w", path, err)
	}
	return cf, nil
}

// LoadFromReader parses a field catalog from an [io.Reader]. The reader is
// consumed entirely; the caller is responsible for closing it.
//
// Entries are validated in place: a missing id is filled with a generated
// one, an empty name or a duplicate explicit id is an error, and an
// unrecognised type logs a warning but passes through.
func LoadFromReader(r io.Reader) (*File, error) {
	var cf File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown keys to catch typos
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	if err := validate(&cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

// validate checks every entry and assigns generated ids where missing.
// It returns a joined error listing all entry failures found.
func validate(cf *File) error {
	var errs []error

	seen := make(map[string]int, len(cf.Fields)) // id -> index of first use
	for i := range cf.Fields {
		entry := &cf.Fields[i]

		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("fields[%d]: name must not be empty", i))
		}

		if entry.ID == "" {
			entry.ID = uuid.NewString()
		} else if first, dup := seen[entry.ID]; dup {
			errs = append(errs, fmt.Errorf("fields[%d]: duplicate id %q (already used by fields[%d] %q)",
				i, entry.ID, first, cf.Fields[first].Name))
			continue
		}
		seen[entry.ID] = i

		if entry.Type != "" && !slices.Contains(knownFieldTypes, entry.Type) {
			slog.Warn("unknown field type — may be a typo or a custom type",
				"index", i,
				"name", entry.Name,
				"type", entry.Type,
				"known", knownFieldTypes,
			)
		}
	}

	return errors.Join(errs...)
}
