package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// LoadDir compiles every .cue file under dir into module definitions,
// sorted by module name. Files are unified, so a module may be split
// across files.
func LoadDir(dir string) ([]*Definition, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("modules directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	var value cue.Value
	for i, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		if i == 0 {
			value = v
		} else {
			value = value.Unify(v)
		}
	}
	return compileValue(value)
}

// CompileString compiles definitions from a single CUE source.
func CompileString(src, filename string) ([]*Definition, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	return compileValue(v)
}

func compileValue(value cue.Value) ([]*Definition, error) {
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	modulesVal := value.LookupPath(cue.ParsePath("module"))
	if !modulesVal.Exists() {
		return nil, &CompileError{Field: "module", Message: "no modules declared", Pos: value.Pos()}
	}
	iter, err := modulesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []*Definition
	for iter.Next() {
		def, err := CompileModule(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", iter.Label(), err)
		}
		def.Name = iter.Label()
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths,
// sorted.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}
