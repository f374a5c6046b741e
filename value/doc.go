// Package value defines the tagged value every bridge call moves across a
// language or runtime boundary.
//
// A Value is one of seven tags:
//
//	Tag       Payload                Wire name
//	────────────────────────────────────────────
//	Integer   int64                  int
//	Float     float64                float
//	String    string                 string
//	Boolean   bool                   bool
//	Array     ordered []Value        array
//	Object    map[string]Value       object
//	Null      none                   null
//
// Values are immutable: constructors and accessors copy container payloads,
// so a Value handed to a backend can never be changed by the caller.
//
// Classify decides the tag for an arbitrary Go value and never fails; types
// with no bridge representation classify as Null.
package value
