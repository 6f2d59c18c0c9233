package meta

import "fmt"

// ErrTensorMetaMismatch is raised when an appended sample disagrees with the
// tensor's declared schema. Field names the offending meta field.
type ErrTensorMetaMismatch struct {
	Field    string
	Expected any
	Got      any
}

func (e ErrTensorMetaMismatch) Error() string {
	return fmt.Sprintf(
		"tensor meta mismatch on %q: expected %v, got %v",
		e.Field, e.Expected, e.Got,
	)
}
