package pe

import "errors"

var (
	ErrInvalidDOSMagic  = errors.New("invalid DOS magic")
	ErrInvalidSignature = errors.New("invalid PE signature")
	ErrCorruptFile      = errors.New("corrupt PE file")
)
