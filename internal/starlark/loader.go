package starlark

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.starlark.net/starlark"
)

// moduleLoader resolves load() statements against .star files on disk.
// Each module executes once per interpreter run; later loads share its
// frozen globals.
type moduleLoader struct {
	interp *Interpreter
	cache  map[string]*loadEntry
}

type loadEntry struct {
	globals starlark.StringDict
	err     error
	loading bool
}

func newModuleLoader(interp *Interpreter) *moduleLoader {
	return &moduleLoader{interp: interp, cache: make(map[string]*loadEntry)}
}

// load implements starlark.Thread.Load. module is resolved relative to the
// directory of the file containing the load statement.
func (l *moduleLoader) load(thread *starlark.Thread, module string) (starlark.StringDict, error) {
	if !strings.HasSuffix(module, ".star") {
		return nil, fmt.Errorf("load %q: module must be a .star file", module)
	}
	path := module
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.baseDir(thread), module)
	}
	path = filepath.Clean(path)

	if e, ok := l.cache[path]; ok {
		if e.loading {
			return nil, fmt.Errorf("load %q: cycle in load graph", module)
		}
		return e.globals, e.err
	}

	e := &loadEntry{loading: true}
	l.cache[path] = e

	src, err := os.ReadFile(path) //nolint:gosec // G304: path is a script named by the user
	if err != nil {
		e.err = fmt.Errorf("load %q: %w", module, err)
	} else {
		child := newThread("load:"+filepath.Base(path), l.interp.out, l.interp.logger, l.interp.maxSteps)
		child.Load = l.load
		e.globals, e.err = starlark.ExecFileOptions(fileOptions, child, path, src, l.interp.predeclared)
	}
	e.loading = false
	return e.globals, e.err
}

// baseDir is the directory of the innermost file being executed by thread.
func (l *moduleLoader) baseDir(thread *starlark.Thread) string {
	if thread.CallStackDepth() > 0 {
		file := thread.CallFrame(0).Pos.Filename()
		if file != "" && !strings.HasPrefix(file, "<") {
			return filepath.Dir(file)
		}
	}
	return l.interp.dir
}
