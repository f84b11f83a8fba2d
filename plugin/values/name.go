package values

import (
	"encoding/json"
	"fmt"
	"strings"
)

const maxNameLength = 64

// Name is a validated plugin or tool identifier.
// Names double as directory names in the artifact store, so they must never
// contain path separators or parent references.
type Name struct {
	value string
}

// NewName validates a plugin or tool name.
// A valid name must:
// - Be non-empty after trimming
// - contain only alphanumeric characters, underscores, hyphens and dots
// - NOT contain path separators or ".."
// - Be at most 64 characters long
func NewName(name string) (Name, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Name{}, fmt.Errorf("name cannot be empty")
	}

	if len(name) > maxNameLength {
		return Name{}, fmt.Errorf("name %q too long (max %d chars)", name, maxNameLength)
	}

	if strings.ContainsAny(name, `/\`) {
		return Name{}, fmt.Errorf("name %q cannot contain path separators", name)
	}

	if strings.Contains(name, "..") {
		return Name{}, fmt.Errorf("name %q cannot contain parent directory references", name)
	}

	for _, ch := range name {
		if !isValidNameChar(ch) {
			return Name{}, fmt.Errorf("invalid name %q: must contain only alphanumeric characters, underscores, hyphens and dots", name)
		}
	}

	return Name{value: name}, nil
}

func isValidNameChar(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '_' ||
		r == '-' ||
		r == '.'
}

// MustNewName creates a Name or panics.
func MustNewName(name string) Name {
	n, err := NewName(name)
	if err != nil {
		panic(err)
	}
	return n
}

// String returns the name.
func (n Name) String() string {
	return n.value
}

// IsEmpty reports whether this is the zero value.
func (n Name) IsEmpty() bool {
	return n.value == ""
}

// MarshalJSON implements json.Marshaler.
func (n Name) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.value)
}

// UnmarshalJSON implements json.Unmarshaler and validates the decoded name.
func (n *Name) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid name JSON: %w", err)
	}
	parsed, err := NewName(s)
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
