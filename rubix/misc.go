package rubix

import (
	"errors"
)

var (
	ErrNoResultFound = errors.New("no result found")
	ErrDuplicate     = errors.New("already exists")

	ErrInvalidQuery       = errors.New("invalid query")
	ErrInvalidSortField   = errors.New("invalid sort field")
	ErrTransactionFailure = errors.New("transaction failed")

	ErrNotSupported = errors.New("not supported by provider")
	ErrReadOnly     = errors.New("provider is read only")
)
