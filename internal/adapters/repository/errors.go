package repository

import (
	"errors"

	"github.com/okian/meetlink/internal/domain/model"
)

// Sentinel kinds for repository errors.
var (
	ErrNotFound       = model.ErrRecordNotFound
	ErrAlreadyClaimed = model.ErrAlreadyClaimed
	ErrInvalidInput   = errors.New("invalid repository input")
	ErrUnsupportedDSN = errors.New("unsupported database dsn")
)
