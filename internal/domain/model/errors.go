package model

import "errors"

// Sentinels shared by the stores and the components that consume them.
var (
	ErrRecordNotFound = errors.New("processing record not found")
	ErrAlreadyClaimed = errors.New("meeting already claimed")
)
