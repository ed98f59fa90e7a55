// Package bridge connects the Go host to the demo guest.
//
// Declare describes the shared shapes and operations with WIT types; every
// core signature is derived from them by canonical ABI flattening, and New
// refuses a guest whose exports do not match.
//
// The host side of the bridge is a wazero host module implementing print-r
// and the thing-r destructor. ThingR values live in a resource table while
// the guest holds them. Demo objects live in guest memory and are referred
// to by their guest pointer.
//
// Run executes the driver once:
//
//	this is a demo of cxx::bridge
//	called back with r=333
package bridge
