package repository

import "fmt"

// Op names a task store operation.
type Op string

// Operations
const (
	OpSubscribe Op = "subscribe"
	OpCreate    Op = "create"
	OpUpdate    Op = "update"
	OpDelete    Op = "delete"
)

// StoreError is a document store failure (network, permission, not found)
// surfaced to the caller of a task mutation.
type StoreError struct {
	Op  Op
	ID  string
	Err error
}

func (e *StoreError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s task: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s task %s: %v", e.Op, e.ID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
