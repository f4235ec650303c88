package errcode

import "errors"

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	Unsupported   Code = "unsupported"
	InvalidParams Code = "invalid_params"
	IO            Code = "io"
	Proto         Code = "proto"
	Exists        Code = "exists"
	NoDevice      Code = "no_device"
	NotBound      Code = "not_bound"

	Error Code = "error" // generic fallback
)

// Errno values reported to the bus-enumeration framework (Linux numbering).
const (
	errnoEIO        = 5
	errnoENXIO      = 6
	errnoEEXIST     = 17
	errnoENODEV     = 19
	errnoEINVAL     = 22
	errnoEPROTO     = 71
	errnoEOPNOTSUPP = 95
)

// E wraps a Code with the failing operation and an optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, errcode.IO) match a wrapped code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Wrap builds an *E; cause may be nil.
func Wrap(c Code, op string, cause error) error {
	return &E{C: c, Op: op, Err: cause}
}

// Errf builds an *E carrying a message and no cause.
func Errf(c Code, op, msg string) error {
	return &E{C: c, Op: op, Msg: msg}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	return Error
}

// Errno maps an error onto the signed status of the SMBus transfer contract:
// 0 on success, a negative errno otherwise.
func Errno(err error) int {
	switch Of(err) {
	case OK:
		return 0
	case Unsupported:
		return -errnoEOPNOTSUPP
	case InvalidParams:
		return -errnoEINVAL
	case Proto:
		return -errnoEPROTO
	case Exists:
		return -errnoEEXIST
	case NoDevice:
		return -errnoENXIO
	case NotBound:
		return -errnoENODEV
	default:
		return -errnoEIO
	}
}
