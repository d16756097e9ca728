// Package catalog loads field catalogs from YAML files.
//
// A catalog is the set of registered field definitions that proposed names
// are checked against. The expected file shape:
//
//	fields:
//	  - id: "f-301"
//	    name: "Video Rating"
//	    type: rating
//	  - name: "Release Date"
//	    type: date
//
// Entries without an id are assigned a generated one during load; duplicate
// explicit ids are rejected. The type value is pass-through metadata and may
// be any string, though unknown values are logged as a possible typo.
package catalog

import "github.com/0ui-labs/fieldmatch/pkg/similarity"

// File is the top-level structure of a field catalog YAML file.
type File struct {
	Fields []Entry `yaml:"fields"`
}

// Entry is one field definition in a catalog file.
type Entry struct {
	// ID uniquely identifies the field. Auto-generated if empty during load.
	ID string `yaml:"id"`

	// Name is the field's display name.
	Name string `yaml:"name"`

	// Type classifies the field (rating, select, text, ...). Pass-through
	// metadata; unknown values are allowed.
	Type similarity.FieldType `yaml:"type"`
}

// Descriptors converts the catalog entries into the candidate slice the
// matching engine consumes.
func (f *File) Descriptors() []similarity.FieldDescriptor {
	out := make([]similarity.FieldDescriptor, len(f.Fields))
	for i, e := range f.Fields {
		out[i] = similarity.FieldDescriptor{ID: e.ID, Name: e.Name, Type: e.Type}
	}
	return out
}
