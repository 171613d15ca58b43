package employee

import (
	"fmt"
	"strings"
)

// Record is a single named, integer-valued employee row.
type Record struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// ValidateName rejects names that are empty once surrounding whitespace is
// removed. The stored name is never trimmed.
func ValidateName(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: %s required", ErrValidation, field)
	}
	return nil
}

// Validate checks the fields required to insert the record.
func (r Record) Validate() error {
	return ValidateName("name", r.Name)
}
