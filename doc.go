// Package wasmbridge is a small cross-runtime call bridge between a Go host
// and a WebAssembly guest.
//
// The guest owns an opaque demo object. The host constructs it from a
// string, reads its name back, and hands it to the guest together with a
// host-owned value inside a shared record. While consuming the record the
// guest calls back into the host, which prints the value it was lent.
//
// # Architecture Overview
//
//	wasmbridge/          Root package with the Memory and Allocator interfaces
//	├── bridge/          Declarations, host callbacks and the foreign calls
//	├── guest/           The foreign counterpart, assembled in-process
//	├── wasm/            Core module encoder used to assemble the guest
//	├── resource/        Handle table for host-owned resources
//	├── errors/          Structured error types
//	└── cmd/bridgedemo/  Driver CLI with an optional interactive mode
//
// # Quick Start
//
//	err := bridge.Run(ctx, bridge.Config{Stdout: os.Stdout})
//
// prints
//
//	this is a demo of cxx::bridge
//	called back with r=333
//
// For finer control, open a Bridge and call the operations directly:
//
//	b, err := bridge.New(ctx, bridge.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close(ctx)
//
//	demo, err := b.MakeDemo(ctx, "demo of cxx::bridge")
//	name, err := b.GetName(ctx, demo)
//	err = b.DoThing(ctx, bridge.SharedThing{Z: 222, Y: &bridge.ThingR{Value: 333}, X: demo})
//
// # Ownership
//
// A Demo belongs to the caller until it is closed or moved into a
// SharedThing passed to DoThing. A ThingR passed to DoThing is owned by the
// guest for the duration of the call and dropped by it before returning.
// Using a moved or closed Demo returns an error instead of aborting.
//
// # Thread Safety
//
// A Bridge is NOT thread-safe and should be used by a single goroutine, or
// access must be synchronized.
package wasmbridge
