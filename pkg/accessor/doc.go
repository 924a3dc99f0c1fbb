// Package accessor performs typed reads and writes of extended tags against
// the three metadata registries.
//
// The accessor is pure dispatch. It never stores registry handles: callers
// pass the live store (characteristics, capture result or request builder)
// for the duration of one call.
//
// # Outcomes
//
// Every lookup yields an Outcome: either a decoded tag.Value (possibly
// absent) or a *Failure with one of three reasons:
//
//	ReasonTypeMismatch  name is defined with another width or array-ness
//	ReasonNotExposed    the registry refuses to expose the key
//	ReasonUnknown       any other HAL error, including recovered panics
//
// A name the registry does not know at all is absent, never a failure.
//
// # Byte cross-check
//
// Some devices expose a byte tag as a single byte while others expose it as
// a one-element byte array. For byte-typed tags the accessor also looks the
// name up under both byte shapes and reports each outcome on its own. It
// never decides which one is authoritative.
package accessor
