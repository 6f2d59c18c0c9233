package tensorvault

import "fmt"

// ErrTensorAlreadyExists indicates a duplicate tensor name in a dataset.
type ErrTensorAlreadyExists string

func (e ErrTensorAlreadyExists) Error() string {
	return fmt.Sprintf("tensor %q already exists", string(e))
}

// ErrTensorDoesNotExist indicates the named tensor is not in the dataset.
type ErrTensorDoesNotExist string

func (e ErrTensorDoesNotExist) Error() string {
	return fmt.Sprintf("tensor %q does not exist", string(e))
}

// ErrDynamicTensor indicates samples of varying shape cannot be stacked into
// a single array; read them as a list instead.
type ErrDynamicTensor string

func (e ErrDynamicTensor) Error() string {
	return fmt.Sprintf(
		"tensor %q has dynamically-shaped samples and cannot be stacked; read it as a list",
		string(e),
	)
}

// ErrInvalidKeyType indicates a dataset was indexed with an unsupported
// selector type.
type ErrInvalidKeyType struct {
	Item any
}

func (e ErrInvalidKeyType) Error() string {
	return fmt.Sprintf("invalid dataset key of type %T: %v", e.Item, e.Item)
}

// ErrReadOnly indicates a mutation was attempted on a dataset opened with
// mode "r".
type ErrReadOnly string

func (e ErrReadOnly) Error() string {
	return fmt.Sprintf("dataset is read-only: cannot %s", string(e))
}
