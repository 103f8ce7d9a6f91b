package domain

import "errors"

var (
	ErrInternal    = errors.New("internal error")
	ErrCallTimeout = errors.New("aggregation call timed out")
)

var (
	ErrEmptyQuery   = errors.New("empty query")
	ErrQueryTooLong = errors.New("query too long")
)

var (
	ErrNilCredential = errors.New("nil credential")
)

var (
	ErrSinkUnavailable = errors.New("result sink unavailable")
)
