package dsp

import "errors"

// ErrInvalidSize is returned by NewFFT when the requested size is not a
// positive power of two.
var ErrInvalidSize = errors.New("dsp: size must be a positive power of two")
