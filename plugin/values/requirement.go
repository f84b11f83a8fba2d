package values

// Requirement is a single platform requirement, e.g. ("ext-json", "*") or
// ("php", "^8.1").
type Requirement struct {
	Name       string
	Constraint string
}

// RequirementList is an ordered collection of platform requirements attached
// to a version. Source data may repeat a name; the last entry wins.
type RequirementList struct {
	entries []Requirement
}

// NewRequirementList creates a list from the given requirements.
func NewRequirementList(reqs ...Requirement) RequirementList {
	l := RequirementList{}
	for _, r := range reqs {
		l.Add(r.Name, r.Constraint)
	}
	return l
}

// Add appends a requirement.
func (l *RequirementList) Add(name, constraint string) {
	l.entries = append(l.entries, Requirement{Name: name, Constraint: constraint})
}

// Get returns the effective constraint for name.
func (l RequirementList) Get(name string) (string, bool) {
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Name == name {
			return l.entries[i].Constraint, true
		}
	}
	return "", false
}

// Has reports whether a requirement with the given name exists.
func (l RequirementList) Has(name string) bool {
	_, ok := l.Get(name)
	return ok
}

// All returns the effective requirements in first-seen order, with the
// constraint of the last duplicate.
func (l RequirementList) All() []Requirement {
	index := make(map[string]int, len(l.entries))
	out := make([]Requirement, 0, len(l.entries))
	for _, r := range l.entries {
		if i, ok := index[r.Name]; ok {
			out[i].Constraint = r.Constraint
			continue
		}
		index[r.Name] = len(out)
		out = append(out, r)
	}
	return out
}

// Len returns the number of distinct requirement names.
func (l RequirementList) Len() int {
	return len(l.All())
}

// Map returns the effective requirements keyed by name.
func (l RequirementList) Map() map[string]string {
	m := make(map[string]string, len(l.entries))
	for _, r := range l.entries {
		m[r.Name] = r.Constraint
	}
	return m
}
