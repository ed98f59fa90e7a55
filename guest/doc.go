// Package guest assembles the foreign side of the demo bridge as a core
// WebAssembly module.
//
// The guest owns demo objects in its linear memory and exposes them to the
// host by representation (a pointer). It imports two host functions from
// HostModule: print-r, which the guest calls with a borrowed thing-r handle,
// and [resource-drop]thing-r, which it calls when it is done with an owned
// one.
//
//	exports:
//	  memory
//	  cabi_realloc(old, old_size, align, new_size) -> ptr
//	  make-demo(name_ptr, name_len) -> rep
//	  get-name(rep) -> retptr            ; {ptr u32, len u32}
//	  do-thing(z, y, x)                  ; y: thing-r handle, x: demo rep
//	  [resource-drop]demo(rep)
//
// A dropped demo object is zeroed; get-name traps on it.
package guest
