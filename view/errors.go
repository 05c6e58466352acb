package view

import "fmt"

// ViewError reports that replaying an operation against the live
// object graph failed: either it targeted an object of the wrong
// kind, or it targeted an object that does not (or no longer) exist.
type ViewError struct {
	Kind    ViewErrorKind
	Message string
}

// ViewErrorKind distinguishes the two ways replay can fail.
type ViewErrorKind uint8

const (
	IncompatibleTypes ViewErrorKind = iota
	InconsistentHierarchy
)

func (e *ViewError) Error() string {
	switch e.Kind {
	case IncompatibleTypes:
		return fmt.Sprintf("view: incompatible types: %s", e.Message)
	default:
		return fmt.Sprintf("view: inconsistent hierarchy: %s", e.Message)
	}
}

func incompatibleTypesf(format string, args ...any) *ViewError {
	return &ViewError{Kind: IncompatibleTypes, Message: fmt.Sprintf(format, args...)}
}

func inconsistentHierarchyf(format string, args ...any) *ViewError {
	return &ViewError{Kind: InconsistentHierarchy, Message: fmt.Sprintf(format, args...)}
}
