// Package script evaluates model-authored Lua code with gopher-lua. Go
// functions registered on the Engine are exposed as Lua globals.
package script

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/samcharles93/luachat/internal/logger"
)

var (
	ErrSyntax     = errors.New("lua syntax error")
	ErrRuntime    = errors.New("lua runtime error")
	ErrConversion = errors.New("lua result conversion")
)

// Options configures an Engine.
type Options struct {
	// Funcs are registered as globals before any evaluation.
	Funcs map[string]lua.LGFunction
	// Timeout bounds a single evaluation. Zero means no limit.
	Timeout time.Duration
	Logger  logger.Logger
}

// Engine is a Lua state reused across evaluations, so globals assigned by
// one chunk are visible to the next.
type Engine struct {
	mu      sync.Mutex
	L       *lua.LState
	timeout time.Duration
	log     logger.Logger
}

// removed from the base library: they reach the filesystem.
var unsafeGlobals = []string{"dofile", "loadfile"}

// New creates an Engine with the base, table, string and math libraries.
func New(opts Options) *Engine {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range unsafeGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	e := &Engine{L: L, timeout: opts.Timeout, log: logger.OrDiscard(opts.Logger)}
	for name, fn := range opts.Funcs {
		e.Register(name, fn)
	}
	return e
}

// Register exposes fn as the global name.
func (e *Engine) Register(name string, fn lua.LGFunction) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.L.SetGlobal(name, e.L.NewFunction(fn))
}

// Eval runs src and converts its first result. The source is tried as an
// expression first, then as a chunk. A nil result reports present=false.
func (e *Engine) Eval(src string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn, err := e.L.LoadString("return " + src)
	if err != nil {
		if fn, err = e.L.LoadString(src); err != nil {
			return "", false, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
	}

	if e.timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		e.L.SetContext(ctx)
		defer e.L.RemoveContext()
	}

	top := e.L.GetTop()
	e.L.Push(fn)
	if err := e.L.PCall(0, 1, nil); err != nil {
		e.L.SetTop(top)
		return "", false, fmt.Errorf("%w: %v", ErrRuntime, err)
	}
	ret := e.L.Get(-1)
	e.L.SetTop(top)

	out, ok, err := Convert(ret)
	e.log.Debug("script evaluated", "type", ret.Type().String(), "present", ok, "err", err)
	return out, ok, err
}

func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.L.Close()
}
