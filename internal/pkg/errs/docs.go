// Package errs holds the typed errors shared by the domain, the use cases and
// the adapters.
//
// Every type pairs with a sentinel so callers can branch with errors.Is
// without knowing the concrete type:
//
//	ErrObjectNotFound    ObjectNotFoundError     unknown order, courier or attempt
//	ErrValueIsInvalid    ValueIsInvalidError     malformed input, e.g. a bad tracking code
//	ErrValueIsOutOfRange ValueIsOutOfRangeError  latitude, rating or limit out of bounds
//	ErrValueIsRequired   ValueIsRequiredError    zero id, empty reason
//	ErrVersionIsInvalid  VersionIsInvalidError   optimistic write lost to a concurrent one
//
// The HTTP adapter maps the sentinels to status codes; dispatch treats
// ErrVersionIsInvalid as contention and retries.
package errs
