//go:build darwin || freebsd || linux

package native

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/ebitengine/purego"

	"github.com/wippyai/bridge-runtime/signature"
)

// PuregoLoader opens libraries with dlopen through purego, without cgo.
type PuregoLoader struct {
	// Mode is passed to dlopen. Zero means RTLD_NOW|RTLD_LOCAL.
	Mode int
}

// DefaultLoader returns the platform loader.
func DefaultLoader() Loader {
	return PuregoLoader{}
}

func (l PuregoLoader) Open(path string) (Library, error) {
	// Bare sonames are searched by dlopen; paths must exist.
	if strings.ContainsRune(path, os.PathSeparator) {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
	}

	mode := l.Mode
	if mode == 0 {
		mode = purego.RTLD_NOW | purego.RTLD_LOCAL
	}
	handle, err := purego.Dlopen(path, mode)
	if err != nil {
		return nil, err
	}
	return &puregoLibrary{handle: handle}, nil
}

type puregoLibrary struct {
	handle uintptr
	mu     sync.Mutex
	closed bool
}

func (l *puregoLibrary) Lookup(symbol string) (Proc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, fmt.Errorf("library closed")
	}

	sym, err := purego.Dlsym(l.handle, symbol)
	if err != nil || sym == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return &puregoProc{sym: sym, fns: make(map[reflect.Type]reflect.Value)}, nil
}

func (l *puregoLibrary) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return purego.Dlclose(l.handle)
}

// puregoProc binds a symbol once per distinct func type.
type puregoProc struct {
	fns map[reflect.Type]reflect.Value
	sym uintptr
	mu  sync.Mutex
}

func (p *puregoProc) Call(sig signature.Signature, args []any) (any, error) {
	ft, err := FuncType(sig)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	fn, ok := p.fns[ft]
	if !ok {
		ptr := reflect.New(ft)
		purego.RegisterFunc(ptr.Interface(), p.sym)
		fn = ptr.Elem()
		p.fns[ft] = fn
	}
	p.mu.Unlock()

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = reflect.ValueOf(a)
	}

	out := fn.Call(in)
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}
