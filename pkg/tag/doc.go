// Package tag defines the vocabulary shared by every layer of vtprobe.
//
// # Tags
//
// An extended metadata tag is not known at compile time. The operator names
// it and picks how the value is laid out:
//
//	TagSpec{Name: "com.vendor.control.mode", Type: Byte, Cardinality: Single}
//
// The (Type, Cardinality) pair is a Shape. There are exactly eight shapes:
//
//	Byte/Single   Byte/Array
//	Int32/Single  Int32/Array
//	Int64/Single  Int64/Array
//	Float/Single  Float/Array
//
// # Registries
//
// The same TagSpec resolves against three registries:
//   - StaticCapabilities: read-only, per device
//   - DynamicResult: read-only, per captured frame
//   - MutableRequest: writable, per submitted request
//
// # Values
//
// Value is a closed tagged union over the eight shapes plus "absent". Absent
// means the key is valid but the registry holds nothing for it; it is not an
// error. Values are built only through the typed constructors (ByteValue,
// Int32Array, Absent, ...), so a Value always agrees with its Shape.
package tag
