package starlark

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/alchemy/internal/config"
	"github.com/leapstack-labs/alchemy/internal/soup"
)

func TestKindOfReaction_Exhaustive(t *testing.T) {
	seen := make(map[ErrorKind]soup.ReactionError)
	for _, re := range soup.ReactionErrors() {
		kind := KindOfReaction(re)
		assert.NotEqual(t, KindUnknown, kind, "%s has no kind", re)
		assert.NotEqual(t, KindInvalidArgument, kind)
		if prev, dup := seen[kind]; dup {
			t.Errorf("%s and %s share kind %s", prev, re, kind)
		}
		seen[kind] = re
	}
	assert.Len(t, seen, soup.NumReactionErrors)
	assert.Len(t, Kinds(), soup.NumReactionErrors+1)

	assert.Equal(t, KindUnknown, KindOfReaction(0))
	assert.Equal(t, KindUnknown, KindOfReaction(soup.ReactionError(99)))
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "IsIdentity", KindIsIdentity.String())
	assert.Equal(t, "InvalidArgument", KindInvalidArgument.String())
	assert.Equal(t, "Unknown", ErrorKind(-1).String())
	assert.Equal(t, "Unknown", ErrorKind(100).String())

	names := make(map[string]bool)
	for _, k := range Kinds() {
		assert.False(t, names[k.String()], "duplicate name %s", k)
		names[k.String()] = true
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "reaction", err: soup.IsParent, want: KindIsParent},
		{name: "wrapped reaction", err: fmt.Errorf("collision 3: %w", soup.ExceedsDepthLimit), want: KindExceedsDepthLimit},
		{name: "invalid argument", err: fmt.Errorf("size: %w", config.ErrInvalidArgument), want: KindInvalidArgument},
		{name: "kind error", err: &KindError{Kind: KindHasFreeVariables, Err: errors.New("x")}, want: KindHasFreeVariables},
		{name: "plain", err: errors.New("boom"), want: KindUnknown},
		{name: "nil", err: nil, want: KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestScriptError_Error(t *testing.T) {
	se := &ScriptError{File: "a.star", Message: "boom"}
	assert.Equal(t, "a.star: boom", se.Error())

	se.Kind = KindInvalidArgument
	assert.Equal(t, "a.star: InvalidArgument: boom", se.Error())
}
