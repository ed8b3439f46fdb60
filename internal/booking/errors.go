package booking

import "errors"

// ErrMissingSelection is returned when a booking is attempted without a
// child, doctor, or slot chosen. Validation happens before any store call.
var ErrMissingSelection = errors.New("child, doctor, and slot must all be selected")
