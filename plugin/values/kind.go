package values

import "fmt"

// Kind distinguishes the two artifact types managed by the toolchain.
type Kind string

const (
	// KindPlugin is an integration plugin.
	KindPlugin Kind = "plugin"
	// KindTool is an executable tool owned by a plugin.
	KindTool Kind = "tool"
)

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPlugin, KindTool:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown artifact kind %q", s)
	}
}

// String returns the kind as used in descriptions ("plugin" or "tool").
func (k Kind) String() string {
	return string(k)
}

// Dir returns the directory name used for artifacts of this kind.
func (k Kind) Dir() string {
	return string(k) + "s"
}
