// Package oci downloads artifacts stored in OCI registries.
package oci

import (
	"context"
	"os"
	"strings"
)

// EnvAuthProvider retrieves credentials from environment variables.
// Host-specific variables (REGLET_REGISTRY_<HOST>_USERNAME, with the host
// upper-cased and non-alphanumerics replaced by "_") win over the generic
// REGISTRY_USERNAME/REGISTRY_PASSWORD pair.
type EnvAuthProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvAuthProvider creates a new environment-based auth provider.
func NewEnvAuthProvider() *EnvAuthProvider {
	return &EnvAuthProvider{lookup: os.LookupEnv}
}

// GetCredentials returns username and password for a registry.
func (p *EnvAuthProvider) GetCredentials(_ context.Context, registry string) (username, password string, err error) {
	prefix := "REGLET_REGISTRY_" + envKey(registry) + "_"
	if u, ok := p.lookup(prefix + "USERNAME"); ok {
		pw, _ := p.lookup(prefix + "PASSWORD")
		return u, pw, nil
	}
	username, _ = p.lookup("REGISTRY_USERNAME")
	password, _ = p.lookup("REGISTRY_PASSWORD")
	return username, password, nil
}

func envKey(host string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, host)
}
