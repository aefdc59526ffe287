package mifare

import "fmt"

// Status tracks the outcome of the last operation on a block, trailer, sector or card.
type Status int

const (
	StatusUninitialized Status = iota
	StatusOK
	StatusNotRead
	StatusAuthError
	StatusReadError
	StatusWriteError
	StatusKeyError
)

var statusNames = [...]string{
	StatusUninitialized: "NO INIT",
	StatusOK:            "OK",
	StatusNotRead:       "NOT READ",
	StatusAuthError:     "AUTH ERROR",
	StatusReadError:     "READ ERROR",
	StatusWriteError:    "WRITE ERROR",
	StatusKeyError:      "KEY ERROR",
}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// OK is shorthand for s == StatusOK.
func (s Status) OK() bool { return s == StatusOK }
