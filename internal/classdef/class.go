package classdef

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/lifetimes/internal/refgraph"
)

// Error codes reported by CompileError.
const (
	ErrCodeInvalidClass = "E201" // definition violates the class schema
	ErrCodeUnknownType  = "E202" // field type names no known class
	ErrCodeNoClasses    = "E203" // no class definitions found
	ErrCodeLoadFailed   = "E204" // CUE files could not be loaded
)

const schemaSrc = `
#Field: {
	kind: "strong" | "weak" | "unowned"
	type: string & !=""
}
#Class: {
	description?: string
	fields?: [string]: #Field
}
`

// FieldSpec declares one reference-holding field of a class.
type FieldSpec struct {
	Name string           `json:"name"`
	Kind refgraph.RefKind `json:"kind"`
	Type string           `json:"type"`
	Pos  token.Pos        `json:"-"`
}

// ClassSpec is a compiled class definition. Fields keep declaration order.
type ClassSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Fields      []FieldSpec `json:"fields"`
}

// Field looks up a field by name.
func (c *ClassSpec) Field(name string) (FieldSpec, bool) {
	i := slices.IndexFunc(c.Fields, func(f FieldSpec) bool { return f.Name == name })
	if i < 0 {
		return FieldSpec{}, false
	}
	return c.Fields[i], true
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: [%s] %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// CompileClass parses a single class value, e.g. the value at
// "class.Student".
func CompileClass(v cue.Value) (*ClassSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err, "class")
	}

	spec := &ClassSpec{Fields: []FieldSpec{}}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}
	field := "class." + spec.Name

	schema := v.Context().CompileString(schemaSrc).LookupPath(cue.ParsePath("#Class"))
	checked := schema.Unify(v)
	if err := checked.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err, field)
	}

	if d := checked.LookupPath(cue.ParsePath("description")); d.Exists() {
		desc, err := d.String()
		if err != nil {
			return nil, formatCUEError(err, field+".description")
		}
		spec.Description = desc
	}

	fieldsVal := checked.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return spec, nil
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err, field+".fields")
	}
	for iter.Next() {
		f, err := compileField(iter.Label(), iter.Value(), field+".fields")
		if err != nil {
			return nil, err
		}
		spec.Fields = append(spec.Fields, f)
	}
	return spec, nil
}

func compileField(name string, v cue.Value, parent string) (FieldSpec, error) {
	path := parent + "." + name
	kindStr, err := v.LookupPath(cue.ParsePath("kind")).String()
	if err != nil {
		return FieldSpec{}, formatCUEError(err, path+".kind")
	}
	kind, err := refgraph.ParseRefKind(kindStr)
	if err != nil {
		return FieldSpec{}, &CompileError{Code: ErrCodeInvalidClass, Field: path + ".kind", Message: err.Error(), Pos: v.Pos()}
	}
	typ, err := v.LookupPath(cue.ParsePath("type")).String()
	if err != nil {
		return FieldSpec{}, formatCUEError(err, path+".type")
	}
	return FieldSpec{Name: name, Kind: kind, Type: typ, Pos: v.Pos()}, nil
}

// formatCUEError converts a CUE error into a CompileError carrying the
// first reported position.
func formatCUEError(err error, field string) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{Code: ErrCodeInvalidClass, Field: field, Message: err.Error()}
	}
	first := errs[0]
	ce := &CompileError{Code: ErrCodeInvalidClass, Field: field, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
