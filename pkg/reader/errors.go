package reader

import "errors"

var (
	// ErrNoReaders is fatal at startup: the session needs exactly one reader.
	ErrNoReaders = errors.New("no PC/SC readers available")

	// ErrConnectTimeout means no card was present within the connect timeout.
	ErrConnectTimeout = errors.New("card connect timeout")

	// ErrConnection wraps driver failures raised while connecting.
	ErrConnection = errors.New("card connection error")
)
