package contract

import "errors"

// ErrDuplicateKey is returned by Create methods when a unique constraint rejects the row.
var ErrDuplicateKey = errors.New("duplicate key")
