package validation

// DocumentValidator validates raw documents against registered schemas.
type DocumentValidator interface {
	// Validate checks a decoded JSON value against the schema of kind.
	Validate(kind string, document interface{}) (*ValidationResult, error)
}

// ValidationResult holds the outcome of a validation.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// ValidationError is one schema violation.
type ValidationError struct {
	// Location is a JSON pointer into the document.
	Location string
	Message  string
}

func (e ValidationError) String() string {
	if e.Location == "" {
		return e.Message
	}
	return e.Location + ": " + e.Message
}
