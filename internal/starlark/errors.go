package starlark

import (
	"errors"
	"fmt"
	"strings"

	"go.starlark.net/starlark"

	"github.com/leapstack-labs/alchemy/internal/config"
	"github.com/leapstack-labs/alchemy/internal/soup"
)

// ErrorKind classifies errors surfaced to scripts.
type ErrorKind int

// Error kinds. KindUnknown marks errors that carry no kind.
const (
	KindUnknown ErrorKind = iota
	KindExceedsReductionLimit
	KindExceedsDepthLimit
	KindNotEnoughExpressions
	KindIsIdentity
	KindIsParent
	KindHasFreeVariables
	KindInvalidArgument
)

var kindNames = [...]string{
	KindUnknown:               "Unknown",
	KindExceedsReductionLimit: "ExceedsReductionLimit",
	KindExceedsDepthLimit:     "ExceedsDepthLimit",
	KindNotEnoughExpressions:  "NotEnoughExpressions",
	KindIsIdentity:            "IsIdentity",
	KindIsParent:              "IsParent",
	KindHasFreeVariables:      "HasFreeVariables",
	KindInvalidArgument:       "InvalidArgument",
}

// reactionKinds maps every reaction outcome to its kind. An outcome missing
// here reads as KindUnknown; TestKindOfReaction_Exhaustive fails on that.
var reactionKinds = [soup.NumReactionErrors + 1]ErrorKind{
	soup.ExceedsReductionLimit: KindExceedsReductionLimit,
	soup.ExceedsDepthLimit:     KindExceedsDepthLimit,
	soup.NotEnoughExpressions:  KindNotEnoughExpressions,
	soup.IsIdentity:            KindIsIdentity,
	soup.IsParent:              KindIsParent,
	soup.HasFreeVariables:      KindHasFreeVariables,
}

// Kinds returns every kind except KindUnknown.
func Kinds() []ErrorKind {
	out := make([]ErrorKind, 0, len(kindNames)-1)
	for k := KindExceedsReductionLimit; int(k) < len(kindNames); k++ {
		out = append(out, k)
	}
	return out
}

func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// KindOfReaction returns the kind of a reaction outcome.
func KindOfReaction(e soup.ReactionError) ErrorKind {
	if e < 0 || int(e) >= len(reactionKinds) {
		return KindUnknown
	}
	return reactionKinds[e]
}

// KindOf finds the kind of err by looking through its chain.
func KindOf(err error) ErrorKind {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	var re soup.ReactionError
	if errors.As(err, &re) {
		return KindOfReaction(re)
	}
	if errors.Is(err, config.ErrInvalidArgument) {
		return KindInvalidArgument
	}
	return KindUnknown
}

// KindError is an error raised by a builtin. Its message is the message of
// Err; the kind travels alongside it.
type KindError struct {
	Kind ErrorKind
	Err  error
}

func (e *KindError) Error() string { return e.Err.Error() }

func (e *KindError) Unwrap() error { return e.Err }

// invalidArgument builds an InvalidArgument error for builtin fn.
func invalidArgument(fn string, format string, args ...any) error {
	return &KindError{
		Kind: KindInvalidArgument,
		Err:  fmt.Errorf("%w: %s: %s", config.ErrInvalidArgument, fn, fmt.Sprintf(format, args...)),
	}
}

// ScriptError is a failure while loading or running a script.
type ScriptError struct {
	File    string
	Message string
	// Kind is the kind raised by a builtin, KindUnknown otherwise.
	Kind ErrorKind
	// Backtrace is the Starlark call stack, empty for syntax errors.
	Backtrace string
	Err       error
}

func (e *ScriptError) Error() string {
	if e.Kind != KindUnknown {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// newScriptError converts an error returned by the interpreter.
func newScriptError(file string, err error) *ScriptError {
	se := &ScriptError{File: file, Message: err.Error(), Kind: KindOf(err), Err: err}
	var ee *starlark.EvalError
	if errors.As(err, &ee) {
		se.Message = ee.Msg
		se.Backtrace = strings.TrimSpace(ee.Backtrace())
	}
	return se
}
