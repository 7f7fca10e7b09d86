package db

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"
)

var retryableErrs = []error{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	io.EOF,
}

// Some drivers flatten the underlying syscall error into a string.
var retryableMessages = []string{
	"connection reset by peer",
	"connection refused",
}

func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	for _, retryableErr := range retryableErrs {
		if errors.Is(err, retryableErr) {
			return true
		}
	}

	for _, msg := range retryableMessages {
		if strings.Contains(err.Error(), msg) {
			return true
		}
	}

	return false
}

// PersistenceError is returned when a write against the warehouse fails. The transaction it ran in has been rolled back.
type PersistenceError struct {
	Op    string
	Table string
	Err   error
}

func NewPersistenceError(op, table string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Table: table, Err: err}
}

func (e *PersistenceError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("failed to %s %q: %v", e.Op, e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
