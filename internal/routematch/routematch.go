// Package routematch matches a concrete request path against the set
// of templated paths a platform's connection model definitions
// declare (segments like ":id"), and reverses the match back onto a
// template for passthrough dispatch. This is the only place in the
// gateway that reasons about path segments directly; everything else
// works off the already-resolved ConnectionModelDefinition.
package routematch

import (
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// specificityEnv is the evaluation environment for the tie-break
// expression: a candidate replaces the current best only when it has
// strictly fewer wildcard segments.
type specificityEnv struct {
	Wildcards     int
	BestWildcards int
}

var specificityProgram *vm.Program

func init() {
	program, err := expr.Compile("BestWildcards == -1 || Wildcards < BestWildcards", expr.Env(specificityEnv{}), expr.AsBool())
	if err != nil {
		panic("routematch: specificity expression failed to compile: " + err.Error())
	}
	specificityProgram = program
}

// Match returns the template from candidates that matches concrete
// with the fewest wildcard segments, along with the path params bound
// along the way. Ties break on candidate order (first listed wins), so
// callers should order candidates deterministically (e.g. as returned
// from the store).
func Match(concrete string, candidates []string) (template string, pathParams map[string]string, ok bool) {
	bestWildcards := -1
	for _, candidate := range candidates {
		params, matched := matchOne(candidate, concrete)
		if !matched {
			continue
		}
		wildcards := len(params)

		better, err := expr.Run(specificityProgram, specificityEnv{Wildcards: wildcards, BestWildcards: bestWildcards})
		if err != nil {
			// Falls back to the plain comparison the expression encodes;
			// a bad env shape here is a programmer error, not request data.
			better = bestWildcards == -1 || wildcards < bestWildcards
		}

		if better.(bool) {
			bestWildcards = wildcards
			template = candidate
			pathParams = params
			ok = true
		}
	}
	return template, pathParams, ok
}

func matchOne(template, concrete string) (map[string]string, bool) {
	tSegs := splitPath(template)
	cSegs := splitPath(concrete)
	if len(tSegs) != len(cSegs) {
		return nil, false
	}
	params := make(map[string]string)
	for i, t := range tSegs {
		if strings.HasPrefix(t, ":") {
			params[strings.TrimPrefix(t, ":")] = cSegs[i]
			continue
		}
		if t != cSegs[i] {
			return nil, false
		}
	}
	return params, true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Template rewrites concrete's segments that correspond to template's
// wildcards back into the template's placeholders, producing the
// callable path a passthrough request was actually matched against.
// Returns false if concrete doesn't have the same segment count as
// template.
func Template(template, concrete string) (string, bool) {
	tSegs := splitPath(template)
	cSegs := splitPath(concrete)
	if len(tSegs) != len(cSegs) {
		return "", false
	}
	out := make([]string, len(tSegs))
	for i, t := range tSegs {
		if strings.HasPrefix(t, ":") {
			out[i] = cSegs[i]
			continue
		}
		out[i] = t
	}
	return "/" + strings.Join(out, "/"), true
}
