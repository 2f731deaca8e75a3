package models

// Task is one configured (source, target) pair to reconcile
type Task struct {
	ID             string
	Name           string
	Source         string
	Target         string
	CompareContent bool // byte-compare files instead of trusting size and time
}

// Label returns the name of the task, or its source path if unnamed
func (t Task) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Source
}

// Validate checks if the task configuration is valid
func (t Task) Validate() error {
	if t.Source == "" {
		return &ValidationError{Field: "Source", Message: "source path is required"}
	}
	if t.Target == "" {
		return &ValidationError{Field: "Target", Message: "target path is required"}
	}
	if t.Source == t.Target {
		return &ValidationError{Field: "Target", Message: "source and target cannot be the same"}
	}
	return nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
