// Package starlark embeds a Starlark interpreter with builtins for building
// soups, generating terms and analysing populations.
//
// Scripts see Soup, Reactor, Standardization, BTreeGen, FontanaGen,
// decode_hex, encode_hex, read_terms and the ErrorKind table. Errors raised
// by builtins carry an ErrorKind that survives into the ScriptError returned
// to Go callers.
package starlark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// fileOptions enables the dialect features scripts commonly need.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Interpreter runs scripts against the alchemy builtins.
type Interpreter struct {
	predeclared starlark.StringDict
	out         io.Writer
	logger      *slog.Logger
	maxSteps    uint64
	// dir resolves load() from chunks that are not files.
	dir string
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithOutput sets the destination of print(). The default is stdout.
func WithOutput(w io.Writer) Option {
	return func(in *Interpreter) {
		if w != nil {
			in.out = w
		}
	}
}

// WithLogger sets the logger handed to soups created by scripts.
func WithLogger(logger *slog.Logger) Option {
	return func(in *Interpreter) {
		if logger != nil {
			in.logger = logger
		}
	}
}

// WithMaxSteps bounds the Starlark computation steps of one execution.
func WithMaxSteps(n uint64) Option {
	return func(in *Interpreter) { in.maxSteps = n }
}

// WithDir sets the directory load() resolves against outside a file.
func WithDir(dir string) Option {
	return func(in *Interpreter) { in.dir = dir }
}

// NewInterpreter creates an interpreter with the builtins predeclared.
func NewInterpreter(opts ...Option) *Interpreter {
	in := &Interpreter{
		predeclared: Predeclared(),
		out:         os.Stdout,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Globals returns the predeclared names visible to every script.
func (in *Interpreter) Globals() starlark.StringDict { return in.predeclared }

// AddGlobals predeclares extra values. Names that shadow a builtin are
// rejected.
func (in *Interpreter) AddGlobals(globals starlark.StringDict) error {
	for name := range globals {
		if slices.Contains(builtinNames, name) {
			return fmt.Errorf("global %q conflicts with builtin", name)
		}
	}
	predeclared := maps.Clone(in.predeclared)
	maps.Copy(predeclared, globals)
	in.predeclared = predeclared
	return nil
}

// ExecFile runs the script at path and returns its globals.
func (in *Interpreter) ExecFile(ctx context.Context, path string) (starlark.StringDict, error) {
	src, err := os.ReadFile(path) //nolint:gosec // G304: path is a script named by the user
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return in.Exec(ctx, path, src)
}

// Exec runs src as a module named filename and returns its globals.
func (in *Interpreter) Exec(ctx context.Context, filename string, src []byte) (starlark.StringDict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	thread := in.thread(filename)
	release := cancelOnDone(ctx, thread)
	defer release()

	in.logger.Debug("executing script", "file", filename, "bytes", len(src))
	globals, err := starlark.ExecFileOptions(fileOptions, thread, filename, src, in.predeclared)
	if err != nil {
		return nil, in.fail(ctx, filename, err)
	}
	return globals, nil
}

// Eval evaluates a single expression.
func (in *Interpreter) Eval(ctx context.Context, expr string) (starlark.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	const filename = "<expr>"
	thread := in.thread(filename)
	release := cancelOnDone(ctx, thread)
	defer release()

	v, err := starlark.EvalOptions(fileOptions, thread, filename, expr, in.predeclared)
	if err != nil {
		return nil, in.fail(ctx, filename, err)
	}
	return v, nil
}

func (in *Interpreter) thread(name string) *starlark.Thread {
	thread := newThread(name, in.out, in.logger, in.maxSteps)
	thread.Load = newModuleLoader(in).load
	return thread
}

// fail reports cancellation as the context error and everything else as a
// ScriptError.
func (in *Interpreter) fail(ctx context.Context, filename string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", filename, ctxErr)
	}
	return newScriptError(filename, err)
}

// Session is a sequence of chunks sharing one set of globals, as typed at a
// REPL.
type Session struct {
	interp  *Interpreter
	globals starlark.StringDict
	loader  *moduleLoader
}

// NewSession starts a session whose globals begin as the predeclared names.
func (in *Interpreter) NewSession() *Session {
	return &Session{
		interp:  in,
		globals: maps.Clone(in.predeclared),
		loader:  newModuleLoader(in),
	}
}

// Run executes one chunk. A chunk that is a single expression returns its
// value; any other chunk returns None.
func (s *Session) Run(ctx context.Context, src string) (starlark.Value, error) {
	const filename = "<repl>"
	f, err := fileOptions.Parse(filename, src, 0)
	if err != nil {
		return nil, newScriptError(filename, err)
	}

	thread := newThread(filename, s.interp.out, s.interp.logger, s.interp.maxSteps)
	thread.Load = s.loader.load
	release := cancelOnDone(ctx, thread)
	defer release()

	if expr := soleExpr(f); expr != nil {
		v, err := starlark.EvalExprOptions(f.Options, thread, expr, s.globals)
		if err != nil {
			return nil, s.interp.fail(ctx, filename, err)
		}
		return v, nil
	}
	if err := starlark.ExecREPLChunk(f, thread, s.globals); err != nil {
		return nil, s.interp.fail(ctx, filename, err)
	}
	return starlark.None, nil
}

// Names returns the sorted global names, for completion.
func (s *Session) Names() []string {
	return s.globals.Keys()
}

func soleExpr(f *syntax.File) syntax.Expr {
	if len(f.Stmts) == 1 {
		if stmt, ok := f.Stmts[0].(*syntax.ExprStmt); ok {
			return stmt.X
		}
	}
	return nil
}
