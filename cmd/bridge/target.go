package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.bytecodealliance.org/wit"

	bridgeruntime "github.com/wippyai/bridge-runtime"
	"github.com/wippyai/bridge-runtime/bridge"
	"github.com/wippyai/bridge-runtime/native"
	"github.com/wippyai/bridge-runtime/script"
	"github.com/wippyai/bridge-runtime/signature"
	"github.com/wippyai/bridge-runtime/transcoder"
)

type targetOptions struct {
	libPath    string
	selector   string
	scriptPath string
	signatures string
}

// target is an opened module plus what is known about its functions.
type target struct {
	mod     bridgeruntime.Module
	sigs    map[string]signature.Signature
	path    string
	label   string
	exports []string
}

type funcInfo struct {
	name       string
	resultType string
	params     []paramInfo
	declared   bool
}

type paramInfo struct {
	name    string
	witType wit.Type
	typeStr string
}

func (f funcInfo) String() string {
	if !f.declared {
		return f.name + "(...)"
	}
	params := make([]string, len(f.params))
	for i, p := range f.params {
		params[i] = p.name + ": " + p.typeStr
	}
	result := ""
	if f.resultType != "" {
		result = " -> " + f.resultType
	}
	return f.name + "(" + strings.Join(params, ", ") + ")" + result
}

func loadSignatures(s string) (string, error) {
	if path, ok := strings.CutPrefix(s, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read signatures: %w", err)
		}
		return string(data), nil
	}
	return s, nil
}

func openTarget(ctx context.Context, b *bridge.Bridge, to targetOptions) (*target, error) {
	witText, err := loadSignatures(to.signatures)
	if err != nil {
		return nil, err
	}

	tgt := &target{}
	if witText != "" {
		if tgt.sigs, err = signature.Parse(witText); err != nil {
			return nil, err
		}
	}

	if to.libPath != "" {
		var opts []native.Option
		if witText != "" {
			opts = append(opts, native.WithSignatures(witText))
		}
		mod, err := b.Cpp(to.libPath, opts...)
		if err != nil {
			return nil, err
		}
		tgt.mod, tgt.path, tgt.label = mod, mod.Path(), "native"
		return tgt, nil
	}

	var opts []script.Option
	if witText != "" {
		opts = append(opts, script.WithSignatures(witText))
	}
	mod, err := b.JS(ctx, to.selector, to.scriptPath, opts...)
	if err != nil {
		return nil, err
	}
	tgt.mod, tgt.path, tgt.label = mod, mod.Path(), mod.Selector()
	tgt.exports = mod.Exports()
	return tgt, nil
}

// functions merges declared signatures with discovered exports, sorted by name.
func (t *target) functions() []funcInfo {
	seen := make(map[string]bool)
	var funcs []funcInfo
	for name, sig := range t.sigs {
		seen[name] = true
		fi := funcInfo{name: name, declared: true}
		for i, p := range sig.Params {
			fi.params = append(fi.params, paramInfo{
				name:    fmt.Sprintf("arg%d", i),
				witType: p,
				typeStr: transcoder.TypeName(p),
			})
		}
		if r := sig.Result(); r != nil {
			fi.resultType = transcoder.TypeName(r)
		}
		funcs = append(funcs, fi)
	}
	for _, name := range t.exports {
		if !seen[name] {
			funcs = append(funcs, funcInfo{name: name})
		}
	}
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].name < funcs[j].name })
	return funcs
}

// parseArgs reads each argument as JSON, keeping it as a plain string when
// it is not valid JSON. JSON integers become int64.
func parseArgs(raw []string) []any {
	args := make([]any, len(raw))
	for i, s := range raw {
		args[i] = parseArg(s)
	}
	return args
}

func parseArg(s string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return s
	}
	return normalizeJSON(v)
}

func normalizeJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = normalizeJSON(x[i])
		}
	case map[string]any:
		for k := range x {
			x[k] = normalizeJSON(x[k])
		}
	}
	return v
}

func formatTagged(b *bridge.Bridge, result any) (string, error) {
	v, err := b.Converter().ToValue(result)
	if err != nil {
		return "", err
	}
	data, err := b.Converter().Serialize(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
