package database

import "errors"

var (
	ErrDuplicate   = errors.New("duplicate document")
	ErrTransaction = errors.New("transaction error")
)
