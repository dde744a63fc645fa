package script

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	lua "github.com/yuin/gopher-lua"
)

// Convert maps a Lua value to the text handed back to the conversation.
// Tables are rendered as JSON; booleans, functions and userdata cannot be
// converted.
func Convert(v lua.LValue) (string, bool, error) {
	switch v := v.(type) {
	case *lua.LNilType:
		return "", false, nil
	case lua.LString:
		return string(v), true, nil
	case lua.LNumber:
		return v.String(), true, nil
	case *lua.LTable:
		b, err := json.Marshal(toGo(v, 0))
		if err != nil {
			return "", false, fmt.Errorf("%w: %v", ErrConversion, err)
		}
		return string(b), true, nil
	}
	return "", false, fmt.Errorf("%w: cannot convert %s to string", ErrConversion, v.Type())
}

const maxDepth = 32

// toGo converts a Lua value to plain Go data. Tables with keys 1..n become
// slices; other tables become string-keyed maps.
func toGo(v lua.LValue, depth int) any {
	switch v := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return string(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case *lua.LTable:
		if depth >= maxDepth {
			return "<nested too deep>"
		}
		if n := v.MaxN(); n > 0 && n == countKeys(v) {
			arr := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				arr = append(arr, toGo(v.RawGetInt(i), depth+1))
			}
			return arr
		}
		m := make(map[string]any)
		v.ForEach(func(k, val lua.LValue) {
			key := k.String()
			if n, ok := k.(lua.LNumber); ok {
				key = strconv.FormatFloat(float64(n), 'f', -1, 64)
			}
			m[key] = toGo(val, depth+1)
		})
		return m
	}
	return v.String()
}

func countKeys(t *lua.LTable) int {
	n := 0
	t.ForEach(func(lua.LValue, lua.LValue) { n++ })
	return n
}

// ToLua converts JSON-like Go data to a Lua value.
func ToLua(L *lua.LState, v any) lua.LValue {
	switch v := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case string:
		return lua.LString(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case []any:
		t := L.NewTable()
		for _, e := range v {
			t.Append(ToLua(L, e))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		for k, e := range v {
			t.RawSetString(k, ToLua(L, e))
		}
		return t
	}
	return lua.LString(fmt.Sprint(v))
}

// ReturnJSON marshals v and pushes it as a Lua string, for Go functions
// whose result is a JSON status object.
func ReturnJSON(L *lua.LState, v any) int {
	b, err := json.Marshal(v)
	if err != nil {
		L.RaiseError("encode result: %v", err)
		return 0
	}
	L.Push(lua.LString(b))
	return 1
}
