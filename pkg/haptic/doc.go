// Package haptic manages force-feedback devices and the effects
// uploaded to them: enumeration and ref-counted opening, capability
// queries, effect validation and upload, playback control, and a
// simple rumble convenience layer.
//
// All operations are synchronous calls into a platform backend; none
// suspend internally. The package performs no locking around a Device:
// if the surrounding application is multithreaded, concurrent calls
// against the same Device must be serialized by the caller. The
// Registry's own bookkeeping is safe for concurrent Open/Close.
package haptic
