package starlark

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"

	"github.com/leapstack-labs/alchemy/pkg/lambda"
)

// GoToStarlark converts a Go value to a Starlark value.
// Supported types: string, int, int64, float64, bool, []byte, []string,
// []any, map[string]int, map[string]any and *lambda.Term (as its text).
func GoToStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case starlark.Value:
		return val, nil

	case string:
		return starlark.String(val), nil

	case int:
		return starlark.MakeInt(val), nil

	case int64:
		return starlark.MakeInt64(val), nil

	case float64:
		return starlark.Float(val), nil

	case bool:
		return starlark.Bool(val), nil

	case []byte:
		return starlark.Bytes(val), nil

	case *lambda.Term:
		if val == nil {
			return starlark.None, nil
		}
		return starlark.String(val.String()), nil

	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil

	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case map[string]int:
		dict := starlark.NewDict(len(val))
		for _, k := range sortedKeys(val) {
			if err := dict.SetKey(starlark.String(k), starlark.MakeInt(val[k])); err != nil {
				return nil, fmt.Errorf("dict setkey %q: %w", k, err)
			}
		}
		return dict, nil

	case map[string]any:
		dict := starlark.NewDict(len(val))
		for _, k := range sortedKeys(val) {
			sv, err := GoToStarlark(val[k])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict setkey %q: %w", k, err)
			}
		}
		return dict, nil

	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// sortedKeys fixes dict insertion order so converted values print the same
// on every run.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToGo converts a Starlark value back to a Go value.
// Returns: string, int64, float64, bool, []byte, []any, map[string]any, or
// nil. Soups and generators become their string form.
func ToGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil

	case starlark.String:
		return string(val), nil

	case starlark.Bytes:
		return []byte(val), nil

	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			return val.String(), nil
		}
		return i64, nil

	case starlark.Float:
		return float64(val), nil

	case starlark.Bool:
		return bool(val), nil

	case *starlark.List:
		return iterableToGo(val, val.Len(), "list")

	case starlark.Tuple:
		return iterableToGo(val, val.Len(), "tuple")

	case *starlark.Dict:
		result := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			gv, err := ToGo(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", key, err)
			}
			result[string(key)] = gv
		}
		return result, nil

	default:
		return val.String(), nil
	}
}

func iterableToGo(it starlark.Iterable, n int, what string) ([]any, error) {
	result := make([]any, 0, n)
	iter := it.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		gv, err := ToGo(x)
		if err != nil {
			return nil, fmt.Errorf("%s index %d: %w", what, len(result), err)
		}
		result = append(result, gv)
	}
	return result, nil
}

// GlobalsToGo converts the exported globals of a script. Builtins,
// functions and names starting with an underscore are skipped.
func GlobalsToGo(globals starlark.StringDict) (map[string]any, error) {
	out := make(map[string]any, len(globals))
	for _, name := range globals.Keys() {
		if name == "" || name[0] == '_' {
			continue
		}
		v := globals[name]
		switch v.(type) {
		case *starlark.Function, *starlark.Builtin:
			continue
		}
		gv, err := ToGo(v)
		if err != nil {
			return nil, fmt.Errorf("global %q: %w", name, err)
		}
		out[name] = gv
	}
	return out, nil
}
