// Package platform answers whether a release's requirements hold on the
// running system.
package platform

import (
	"os"
	"runtime"
	"strings"

	"github.com/reglet-dev/reglet-toolchain/plugin/ports"
	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

// Fact names provided for every runtime.
const (
	FactGo   = "go"
	FactOS   = "os"
	FactArch = "arch"
)

// DefaultExtensionPrefix is the environment prefix declaring extensions:
// REGLET_TOOLCHAIN_EXT_FOO=1.2.0 provides "ext-foo" in version 1.2.0.
const DefaultExtensionPrefix = "REGLET_TOOLCHAIN_EXT_"

// Checker implements ports.PlatformChecker over a set of named facts.
// A fact holding a semantic version is matched as a version constraint;
// any other fact is matched against "||" or comma separated alternatives.
type Checker struct {
	facts map[string]string
}

var _ ports.PlatformChecker = (*Checker)(nil)

// Option configures a Checker.
type Option func(*Checker)

// WithFact declares a fact. An empty value means present without version.
func WithFact(name, value string) Option {
	return func(c *Checker) { c.facts[strings.ToLower(name)] = value }
}

// WithEnvironment declares extensions from environ entries carrying prefix.
func WithEnvironment(prefix string, environ []string) Option {
	return func(c *Checker) {
		for _, kv := range environ {
			key, value, ok := strings.Cut(kv, "=")
			if !ok {
				continue
			}
			name, ok := strings.CutPrefix(key, prefix)
			if !ok || name == "" {
				continue
			}
			ext := "ext-" + strings.ReplaceAll(strings.ToLower(name), "_", "-")
			c.facts[ext] = value
		}
	}
}

// NewChecker creates a checker for the running process: Go version, OS,
// architecture and extensions declared in the environment.
func NewChecker(opts ...Option) *Checker {
	base := []Option{
		WithFact(FactGo, strings.TrimPrefix(runtime.Version(), "go")),
		WithFact(FactOS, runtime.GOOS),
		WithFact(FactArch, runtime.GOARCH),
		WithEnvironment(DefaultExtensionPrefix, os.Environ()),
	}
	return NewStaticChecker(append(base, opts...)...)
}

// NewStaticChecker creates a checker holding only the given facts.
func NewStaticChecker(opts ...Option) *Checker {
	c := &Checker{facts: make(map[string]string)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fact returns the value of a fact.
func (c *Checker) Fact(name string) (string, bool) {
	v, ok := c.facts[strings.ToLower(name)]
	return v, ok
}

// IsFulfilled reports whether requirement name satisfies constraint.
// Unknown requirements are never fulfilled.
func (c *Checker) IsFulfilled(name, constraint string) bool {
	value, ok := c.Fact(name)
	if !ok {
		return false
	}
	constraint = strings.TrimSpace(constraint)
	if constraint == "" || constraint == values.AnyVersion {
		return true
	}
	if value == "" {
		return false
	}

	if values.IsValidVersion(value) {
		match, err := values.Matches(value, constraint)
		if err == nil {
			return match
		}
	}

	for _, alt := range strings.FieldsFunc(constraint, func(r rune) bool { return r == '|' || r == ',' }) {
		if strings.EqualFold(strings.TrimSpace(alt), value) {
			return true
		}
	}
	return false
}
