package main

import (
	"fmt"
	"io"

	lua "github.com/yuin/gopher-lua"

	"github.com/samcharles93/luachat/internal/script"
)

type toolStatus struct {
	Status string `json:"status"`
}

var statusOK = toolStatus{Status: "ok"}

// demoTools returns the Lua functions available to the model. They report
// what they would do on out instead of acting. Reminders are kept for the
// life of the returned map so reminders() can list them.
func demoTools(out io.Writer) map[string]lua.LGFunction {
	var reminders []any
	return map[string]lua.LGFunction{
		"reply": func(L *lua.LState) int {
			_, _ = fmt.Fprintf(out, "reply: %s\n", L.CheckString(1))
			return 0
		},
		"send_sms": func(L *lua.LState) int {
			number, msg := L.CheckString(1), L.CheckString(2)
			_, _ = fmt.Fprintf(out, "lua: sending SMS to %s: %s\n", number, msg)
			return script.ReturnJSON(L, statusOK)
		},
		"send_msg": func(L *lua.LState) int {
			room, msg := L.CheckInt64(1), L.CheckString(2)
			_, _ = fmt.Fprintf(out, "lua: sending message to room %d: %s\n", room, msg)
			return script.ReturnJSON(L, statusOK)
		},
		"remember": func(L *lua.LState) int {
			seconds, text := L.CheckInt64(1), L.CheckString(2)
			if seconds < 0 {
				L.ArgError(1, "seconds must not be negative")
				return 0
			}
			_, _ = fmt.Fprintf(out, "lua: reminder in %ds: %s\n", seconds, text)
			reminders = append(reminders, map[string]any{"seconds": seconds, "text": text})
			return script.ReturnJSON(L, statusOK)
		},
		"reminders": func(L *lua.LState) int {
			if len(reminders) == 0 {
				return 0
			}
			L.Push(script.ToLua(L, reminders))
			return 1
		},
		"get_weather": func(L *lua.LState) int {
			_, _ = fmt.Fprintln(out, "lua: get_weather")
			L.Push(lua.LString("rain"))
			return 1
		},
	}
}
