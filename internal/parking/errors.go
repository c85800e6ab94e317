package parking

import "errors"

var (
	ErrPoolExhausted    = errors.New("parking lot is full")
	ErrInvalidSlot      = errors.New("invalid slot number")
	ErrDoubleRelease    = errors.New("slot is already free")
	ErrDuplicateClient  = errors.New("vehicle is already parked")
	ErrDuplicateWaiting = errors.New("vehicle is already waiting")
	ErrUnknownClient    = errors.New("vehicle not found")
	ErrAlreadyActive    = errors.New("vehicle is already parked or waiting")
	ErrInvalidPlate     = errors.New("plate must not be empty")
	ErrInvalidCapacity  = errors.New("capacity out of range")
	ErrInvalidRates     = errors.New("invalid billing rates")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrPoolExhausted, "pool_exhausted"},
	{ErrInvalidSlot, "invalid_slot"},
	{ErrDoubleRelease, "double_release"},
	{ErrDuplicateClient, "duplicate_client"},
	{ErrDuplicateWaiting, "duplicate_waiting"},
	{ErrUnknownClient, "unknown_client"},
	{ErrAlreadyActive, "already_active"},
	{ErrInvalidPlate, "invalid_plate"},
	{ErrInvalidCapacity, "invalid_capacity"},
	{ErrInvalidRates, "invalid_rates"},
}

// ErrorCode returns a stable identifier for err so callers can tell
// "lot full" from "plate not found" without matching on message text.
// Unrecognized errors map to "internal".
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal"
}
