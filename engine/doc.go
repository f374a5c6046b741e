// Package engine provides the script engines behind the script backend.
//
// An Engine loads a script file into a Session. Sessions resolve exported
// names, call them with bridge values and return a bridge value:
//
//	Wazero  core WebAssembly modules on wazero with WASI preview1. Arguments
//	        are lowered to flat core words from the export's core types or
//	        from a declared WIT signature. Strings need linear memory and are
//	        rejected.
//	Lua     Lua 5.2 scripts on go-lua. Arrays and objects become tables;
//	        tables with keys 1..n come back as arrays, integral numbers as
//	        integers.
//
// Failures raised by the script itself (traps, Lua errors) are returned as
// *EngineError. Conversion failures are returned as bridge errors of kind
// type_mismatch so the caller can tell them apart.
//
// Sessions serialize calls with a mutex; neither engine is reentrant.
package engine
