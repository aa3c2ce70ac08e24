package classdef

import (
	"fmt"
	"os"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Registry is a set of classes whose field types all resolve.
type Registry struct {
	classes map[string]*ClassSpec
	names   []string
}

// NewRegistry indexes specs and checks that every field type names a class
// in the set. Returns every problem found, not just the first.
func NewRegistry(specs ...*ClassSpec) (*Registry, []error) {
	r := &Registry{classes: make(map[string]*ClassSpec, len(specs))}
	var errs []error
	for _, spec := range specs {
		if _, dup := r.classes[spec.Name]; dup {
			errs = append(errs, &CompileError{Code: ErrCodeInvalidClass, Field: "class." + spec.Name, Message: "duplicate class"})
			continue
		}
		r.classes[spec.Name] = spec
		r.names = append(r.names, spec.Name)
	}
	for _, name := range r.names {
		for _, f := range r.classes[name].Fields {
			if _, ok := r.classes[f.Type]; !ok {
				errs = append(errs, &CompileError{
					Code:    ErrCodeUnknownType,
					Field:   fmt.Sprintf("class.%s.fields.%s.type", name, f.Name),
					Message: fmt.Sprintf("unknown class %q", f.Type),
					Pos:     f.Pos,
				})
			}
		}
	}
	return r, errs
}

// Class returns the named class.
func (r *Registry) Class(name string) (*ClassSpec, bool) {
	c, ok := r.classes[name]
	return c, ok
}

// Names returns class names in declaration order.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// Len returns the number of classes.
func (r *Registry) Len() int {
	return len(r.names)
}

// Compile extracts every class under the top-level "class" field of v.
// Classes that fail to compile are reported and skipped.
func Compile(v cue.Value) (*Registry, []error) {
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err, "class")}
	}
	classesVal := v.LookupPath(cue.ParsePath("class"))
	if !classesVal.Exists() {
		return nil, []error{&CompileError{Code: ErrCodeNoClasses, Field: "class", Message: "no class definitions found"}}
	}
	iter, err := classesVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err, "class")}
	}

	var (
		specs []*ClassSpec
		errs  []error
	)
	for iter.Next() {
		spec, err := CompileClass(iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		specs = append(specs, spec)
	}
	reg, regErrs := NewRegistry(specs...)
	return reg, append(errs, regErrs...)
}

// CompileString compiles CUE source text.
func CompileString(src, filename string) (*Registry, []error) {
	ctx := cuecontext.New()
	return Compile(ctx.CompileString(src, cue.Filename(filename)))
}

// LoadFiles compiles and unifies standalone CUE files.
func LoadFiles(paths ...string) (*Registry, []error) {
	ctx := cuecontext.New()
	value := ctx.CompileString("{}")
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, []error{&CompileError{Code: ErrCodeLoadFailed, Field: path, Message: err.Error()}}
		}
		value = value.Unify(ctx.CompileBytes(data, cue.Filename(path)))
	}
	return Compile(value)
}

// LoadDir loads the CUE package in dir.
func LoadDir(dir string) (*Registry, []error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, []error{&CompileError{Code: ErrCodeLoadFailed, Field: dir, Message: err.Error()}}
	}
	if !info.IsDir() {
		return nil, []error{&CompileError{Code: ErrCodeLoadFailed, Field: dir, Message: "not a directory"}}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&CompileError{Code: ErrCodeLoadFailed, Field: dir, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&CompileError{Code: ErrCodeLoadFailed, Field: dir, Message: inst.Err.Error()}}
	}

	ctx := cuecontext.New()
	return Compile(ctx.BuildInstance(inst))
}
