// Package signature parses WIT-style function declarations into the
// parameter and result types used to lower and lift native and wasm calls.
package signature

import (
	"regexp"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/bridge-runtime/errors"
)

// Signature is the declared shape of one entry point.
type Signature struct {
	Params  []wit.Type
	Results []wit.Type
}

// Result returns the single result type, or nil for a void function.
func (s Signature) Result() wit.Type {
	if len(s.Results) == 0 {
		return nil
	}
	return s.Results[0]
}

// declPattern matches one declaration such as
// "export add: func(a: s32, b: s32) -> s32". Groups hold the name, the raw
// parameter list and the optional raw result.
var declPattern = regexp.MustCompile(`(?:export\s+)?([a-zA-Z_][a-zA-Z0-9_-]*)\s*:\s*func\s*\(([^)]*)\)(?:\s*->\s*([^;]+))?`)

// Parse returns the signature of every function declared in witText, keyed by
// name. Surrounding package and interface syntax is ignored. Every failure
// is invalid_input, including text with no declarations and a name declared
// twice. A type wit cannot parse wraps the wit error under the function name.
func Parse(witText string) (map[string]Signature, error) {
	funcs := make(map[string]Signature)

	for _, m := range declPattern.FindAllStringSubmatch(witText, -1) {
		name := m[1]
		if _, dup := funcs[name]; dup {
			return nil, errors.InvalidInput(errors.PhaseParse, "function "+name+" declared twice")
		}
		sig, err := parseDecl(name, m[2], strings.TrimSpace(m[3]))
		if err != nil {
			return nil, err
		}
		funcs[name] = sig
	}

	if len(funcs) == 0 {
		return nil, errors.InvalidInput(errors.PhaseParse, "no functions found in WIT text")
	}
	return funcs, nil
}

func parseDecl(name, params, result string) (Signature, error) {
	var sig Signature
	for _, p := range splitTopLevel(params) {
		// "a: s32" names the parameter; only the type after the colon matters.
		if i := strings.LastIndex(p, ":"); i >= 0 {
			p = p[i+1:]
		}
		t, err := parseType(p)
		if err != nil {
			return Signature{}, errors.ParseFailed("param type "+strings.TrimSpace(p)+" of "+name, err)
		}
		sig.Params = append(sig.Params, t)
	}

	results, err := parseResults(name, result)
	if err != nil {
		return Signature{}, err
	}
	sig.Results = results
	return sig, nil
}

// parseResults reads "-> T" or "-> (T, U)". An empty or "()" result is void.
func parseResults(name, result string) ([]wit.Type, error) {
	parts := []string{result}
	if strings.HasPrefix(result, "(") && strings.HasSuffix(result, ")") {
		parts = splitTopLevel(result[1 : len(result)-1])
	}

	var out []wit.Type
	for _, part := range parts {
		if part == "" {
			continue
		}
		t, err := parseType(part)
		if err != nil {
			return nil, errors.ParseFailed("result type "+part+" of "+name, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level declarations.
func MustParse(witText string) map[string]Signature {
	sigs, err := Parse(witText)
	if err != nil {
		panic(err)
	}
	return sigs
}

// splitTopLevel splits s on commas outside any () or <> nesting, so
// "a: list<tuple<s32, s32>>, b: u8" yields two trimmed parts. Empty parts are
// dropped.
func splitTopLevel(s string) []string {
	var parts []string
	depth, from := 0, 0
	flush := func(to int) {
		if part := strings.TrimSpace(s[from:to]); part != "" {
			parts = append(parts, part)
		}
	}

	for i, ch := range s {
		switch ch {
		case '(', '<':
			depth++
		case ')', '>':
			depth--
		case ',':
			if depth == 0 {
				flush(i)
				from = i + 1
			}
		}
	}
	flush(len(s))
	return parts
}

func parseType(s string) (wit.Type, error) {
	return wit.ParseType(strings.TrimSpace(s))
}
