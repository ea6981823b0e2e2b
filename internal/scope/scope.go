// Package scope classifies markets into named subsets ("all", "sports")
// by case-insensitive patterns over their slug, title and event slug.
//
// Exclusion patterns are checked first and always win: venue titles can
// contain an inclusion keyword by accident ("vs" in an election market),
// and the explicit exclusions for known false positives must override it.
package scope

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/atmx/portfolio-engine/internal/model"
)

// Built-in scope names.
const (
	NameAll    = "all"
	NameSports = "sports"
)

var (
	ErrUnknownScope   = errors.New("scope: unknown scope")
	ErrInvalidPattern = errors.New("scope: invalid pattern")
)

// Definition is a named market subset.
type Definition struct {
	Name    string
	Include []*regexp.Regexp
	Exclude []*regexp.Regexp
}

// New compiles a definition. Patterns are regular expressions matched
// case-insensitively anywhere in a field. A definition without inclusion
// patterns contains every market that is not excluded.
func New(name string, include, exclude []string) (Definition, error) {
	def := Definition{Name: name}
	var err error
	if def.Include, err = compile(include); err != nil {
		return Definition{}, fmt.Errorf("%w: scope %s: %v", ErrInvalidPattern, name, err)
	}
	if def.Exclude, err = compile(exclude); err != nil {
		return Definition{}, fmt.Errorf("%w: scope %s: %v", ErrInvalidPattern, name, err)
	}
	return def, nil
}

// MustNew is like New but panics on an invalid pattern.
func MustNew(name string, include, exclude []string) Definition {
	def, err := New(name, include, exclude)
	if err != nil {
		panic(err)
	}
	return def
}

func compile(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

// Contains reports whether the market belongs to the scope. A market that
// matches no inclusion pattern is out of scope.
func (d Definition) Contains(m model.Market) bool {
	fields := [...]string{m.Slug, m.Title, m.EventSlug}
	if anyMatch(d.Exclude, fields[:]) {
		return false
	}
	if len(d.Include) == 0 {
		return true
	}
	return anyMatch(d.Include, fields[:])
}

// IsInScope is Contains as a free function.
func IsInScope(m model.Market, d Definition) bool {
	return d.Contains(m)
}

func anyMatch(patterns []*regexp.Regexp, fields []string) bool {
	for _, re := range patterns {
		for _, f := range fields {
			if f != "" && re.MatchString(f) {
				return true
			}
		}
	}
	return false
}

// All contains every market.
var All = MustNew(NameAll, nil, nil)

// Sports is the curated head-to-head sports subset.
var Sports = MustNew(NameSports,
	[]string{
		`\bvs\.?\b`,
		`\bnfl\b`, `\bnba\b`, `\bwnba\b`, `\bmlb\b`, `\bnhl\b`, `\bmls\b`,
		`\bepl\b`, `\bufc\b`, `\bncaa[bf]?\b`, `\bcfb\b`, `\batp\b`, `\bwta\b`,
		`premier[- ]league`, `champions[- ]league`, `la[- ]liga`, `serie[- ]a`, `bundesliga`,
		`super[- ]bowl`, `world[- ]series`, `stanley[- ]cup`, `nba[- ]finals`, `world[- ]cup`,
	},
	[]string{
		`election`, `president`, `nominee`, `primary`, `senate`, `governor`,
		`\btrump\b`, `\bbiden\b`, `\bharris\b`,
		`bitcoin`, `\bbtc\b`, `ethereum`, `\beth\b`, `solana`,
		`\bfed\b`, `interest[- ]rate`, `inflation`, `\bcpi\b`, `recession`,
	},
)

// Registry holds named definitions.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry creates a registry. Later definitions replace earlier ones
// with the same name.
func NewRegistry(defs ...Definition) *Registry {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		r.defs[d.Name] = d
	}
	return r
}

// DefaultRegistry holds the built-in scopes.
func DefaultRegistry() *Registry {
	return NewRegistry(All, Sports)
}

// Lookup returns the named scope. An empty name means "all".
func (r *Registry) Lookup(name string) (Definition, error) {
	if name == "" {
		name = NameAll
	}
	d, ok := r.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownScope, name)
	}
	return d, nil
}

// Names returns the registered scope names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
