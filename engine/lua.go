package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/Shopify/go-lua"
	"go.uber.org/zap"

	"github.com/wippyai/bridge-runtime/errors"
	"github.com/wippyai/bridge-runtime/value"
)

// exportsKey holds the table a script returns, when it returns one.
const exportsKey = "__bridge_exports"

// maxTableDepth bounds table conversion to keep the Lua stack small.
const maxTableDepth = 32

// maxExactInteger is the largest magnitude a Lua number (float64) holds
// without rounding.
const maxExactInteger = 1 << 53

// Lua runs Lua 5.2 scripts with the standard libraries open.
//
// A script exports functions either by returning a table of them or by
// defining globals. A returned table takes precedence.
type Lua struct{}

func NewLua() *Lua {
	return &Lua{}
}

func (l *Lua) Name() string { return "lua" }

func (l *Lua) Load(ctx context.Context, path string) (Session, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	baseline := globalNames(state)

	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, &EngineError{Engine: l.Name(), Cause: fmt.Errorf("load lua: %w", err)}
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, &EngineError{Engine: l.Name(), Cause: fmt.Errorf("run lua: %w", err)}
	}

	s := &luaSession{state: state, hidden: baseline}
	if state.TypeOf(-1) == lua.TypeTable {
		state.SetGlobal(exportsKey)
		s.table = true
	} else {
		state.Pop(1)
	}

	s.exports = s.scanExports(baseline)

	Logger().Debug("lua script loaded",
		zap.String("path", path),
		zap.Bool("module_table", s.table),
		zap.Int("exports", len(s.exports)))

	return s, nil
}

type luaSession struct {
	state   *lua.State
	hidden  map[string]bool // standard library globals
	exports []string
	mu      sync.Mutex
	table   bool
	closed  bool
}

func globalNames(state *lua.State) map[string]bool {
	names := make(map[string]bool)
	state.PushGlobalTable()
	state.PushNil()
	for state.Next(-2) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			names[key] = true
		}
		state.Pop(1)
	}
	state.Pop(1)
	return names
}

func (s *luaSession) scanExports(baseline map[string]bool) []string {
	var names []string
	if s.table {
		s.state.Global(exportsKey)
	} else {
		s.state.PushGlobalTable()
	}
	s.state.PushNil()
	for s.state.Next(-2) {
		if s.state.TypeOf(-2) == lua.TypeString && s.state.IsFunction(-1) {
			key, _ := s.state.ToString(-2)
			if s.table || !baseline[key] {
				names = append(names, key)
			}
		}
		s.state.Pop(1)
	}
	s.state.Pop(1)
	sort.Strings(names)
	return names
}

// pushFunc pushes the exported value for name and reports whether it is a function.
// The caller pops it either way.
func (s *luaSession) pushFunc(name string) bool {
	switch {
	case s.table:
		s.state.Global(exportsKey)
		s.state.Field(-1, name)
		s.state.Remove(-2)
	case s.hidden[name]:
		s.state.PushNil()
	default:
		s.state.Global(name)
	}
	return s.state.IsFunction(-1)
}

func (s *luaSession) Lookup(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	ok := s.pushFunc(name)
	s.state.Pop(1)
	return ok
}

func (s *luaSession) Exports() []string {
	out := make([]string, len(s.exports))
	copy(out, s.exports)
	return out
}

// Invoke calls name with args and returns its first result.
func (s *luaSession) Invoke(ctx context.Context, name string, args []value.Value) (value.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return value.Value{}, errors.NotInitialized(errors.PhaseInvoke, "lua session")
	}

	top := s.state.Top()
	defer s.state.SetTop(top)

	if !s.pushFunc(name) {
		return value.Value{}, &EngineError{Engine: "lua", Function: name, Cause: ErrNotExported}
	}
	for i, arg := range args {
		if err := pushValue(s.state, arg, []string{"arg" + strconv.Itoa(i)}); err != nil {
			return value.Value{}, err
		}
	}

	debugf("lua call %s with %d args", name, len(args))

	if err := s.state.ProtectedCall(len(args), 1, 0); err != nil {
		return value.Value{}, &EngineError{Engine: "lua", Function: name, Cause: err}
	}

	return toValue(s.state, -1, nil, make(map[any]bool))
}

func (s *luaSession) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.state.SetTop(0)
	s.state = nil
	return nil
}

// pushValue pushes v onto the stack. Integers Lua cannot hold exactly are
// rejected instead of rounded.
func pushValue(state *lua.State, v value.Value, path []string) error {
	switch v.Type() {
	case value.TypeInteger:
		n, _ := v.AsInt()
		if n > maxExactInteger || n < -maxExactInteger {
			return errors.Overflow(errors.PhaseConvert, path, n, "lua number")
		}
		state.PushInteger(int(n))
	case value.TypeFloat:
		f, _ := v.AsFloat()
		state.PushNumber(f)
	case value.TypeString:
		str, _ := v.AsString()
		state.PushString(str)
	case value.TypeBoolean:
		b, _ := v.AsBool()
		state.PushBoolean(b)
	case value.TypeArray:
		items, _ := v.AsList()
		state.CheckStack(2)
		state.CreateTable(len(items), 0)
		for i, item := range items {
			if err := pushValue(state, item, append(path[:len(path):len(path)], strconv.Itoa(i))); err != nil {
				return err
			}
			state.RawSetInt(-2, i+1)
		}
	case value.TypeObject:
		keys := v.Keys()
		state.CheckStack(2)
		state.CreateTable(0, len(keys))
		for _, k := range keys {
			member, _ := v.Get(k)
			if err := pushValue(state, member, append(path[:len(path):len(path)], k)); err != nil {
				return err
			}
			state.SetField(-2, k)
		}
	default:
		state.PushNil()
	}
	return nil
}

// toValue converts the value at index. active holds the tables currently
// being converted, so a table reached again through itself is a cycle.
func toValue(state *lua.State, index int, path []string, active map[any]bool) (value.Value, error) {
	switch state.TypeOf(index) {
	case lua.TypeString:
		str, _ := state.ToString(index)
		return value.Str(str), nil
	case lua.TypeNumber:
		n, _ := state.ToNumber(index)
		return normalizeNumber(n), nil
	case lua.TypeBoolean:
		return value.Bool(state.ToBoolean(index)), nil
	case lua.TypeTable:
		ref := state.ToValue(index)
		if active[ref] {
			return value.Value{}, errors.Cyclic(path, "lua table")
		}
		if len(active) >= maxTableDepth {
			return value.Value{}, errors.New(errors.PhaseConvert, errors.KindTypeMismatch).
				Path(path...).
				GoType("lua table").
				Detail("table nesting exceeds %d levels", maxTableDepth).
				Build()
		}
		active[ref] = true
		defer delete(active, ref)
		return tableToValue(state, index, path, active)
	default:
		return value.Null(), nil
	}
}

// normalizeNumber maps integral Lua numbers within the exact float range to
// Integer. Larger integral numbers stay Float since their low digits are
// already lost.
func normalizeNumber(n float64) value.Value {
	if math.Mod(n, 1) == 0 && n >= -maxExactInteger && n <= maxExactInteger {
		return value.Int(int64(n))
	}
	return value.Float(n)
}

// tableToValue treats a table with keys exactly 1..n as an Array and any
// other table, including an empty one, as an Object keyed by its string keys.
func tableToValue(state *lua.State, index int, path []string, active map[any]bool) (value.Value, error) {
	index = state.AbsIndex(index)
	state.CheckStack(4)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if state.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		items := make([]value.Value, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			item, err := toValue(state, -1, append(path[:len(path):len(path)], strconv.Itoa(i-1)), active)
			state.Pop(1)
			if err != nil {
				return value.Value{}, err
			}
			items = append(items, item)
		}
		return value.List(items...), nil
	}

	members := make(map[string]value.Value)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			m, err := toValue(state, -1, append(path[:len(path):len(path)], key), active)
			if err != nil {
				state.Pop(2)
				return value.Value{}, err
			}
			members[key] = m
		}
		state.Pop(1)
	}
	return value.Map(members), nil
}
