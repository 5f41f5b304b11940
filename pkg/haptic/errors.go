package haptic

import "errors"

// Sentinel errors returned by the haptic core. Callers match them with
// errors.Is; operations wrap them with positional detail.
var (
	// ErrNotFound reports a device index outside the enumeration
	// snapshot or a device that is not open.
	ErrNotFound = errors.New("haptic: device not found")

	// ErrUnsupported reports an effect kind or device feature missing
	// from the capability mask.
	ErrUnsupported = errors.New("haptic: unsupported")

	// ErrResourceExhausted reports a full effect table, either in the
	// core slot table or in the driver.
	ErrResourceExhausted = errors.New("haptic: effect storage exhausted")

	// ErrKindMismatch reports an Update whose definition changes the
	// effect kind. The kind of an uploaded effect is immutable.
	ErrKindMismatch = errors.New("haptic: effect kind mismatch")

	// ErrDevice reports an opaque driver-level failure.
	ErrDevice = errors.New("haptic: device error")

	// ErrInvalidHandle reports use of a destroyed or foreign handle.
	ErrInvalidHandle = errors.New("haptic: invalid effect handle")

	// ErrClosed reports an operation on a closed device.
	ErrClosed = errors.New("haptic: device closed")

	// ErrInvalidEffect reports a definition that failed validation
	// before any driver call was attempted.
	ErrInvalidEffect = errors.New("haptic: invalid effect definition")
)
