package guest

import (
	"github.com/wippyai/wasm-bridge/wasm"
)

// Import and export names of the demo guest.
const (
	HostModule = "bridge:demo/host"

	ImportPrintR     = "print-r"
	ImportDropThingR = "[resource-drop]thing-r"

	ExportMemory   = "memory"
	ExportRealloc  = "cabi_realloc"
	ExportMakeDemo = "make-demo"
	ExportGetName  = "get-name"
	ExportDoThing  = "do-thing"
	ExportDropDemo = "[resource-drop]demo"
)

// MaxPages is the largest memory the guest supports. The allocator computes
// the memory size in bytes as an i32, which overflows at 65536 pages.
const MaxPages = 65535

// DemoSize is the size of a demo object in guest memory: {name_ptr u32, name_len u32}.
const DemoSize = 8

// Options controls the memory layout of the assembled guest.
type Options struct {
	// MemoryPages is the initial memory size in 64KiB pages. 0 means 1.
	MemoryPages uint32

	// MaxMemoryPages caps memory growth. 0 means 16 (1MiB). Values above
	// MaxPages are clamped.
	MaxMemoryPages uint32

	// HeapBase is the first address handed out by cabi_realloc. 0 means 16.
	// Addresses below it are never allocated, so a zero rep is always invalid.
	HeapBase uint32
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.MemoryPages == 0 {
		o.MemoryPages = 1
	}
	if o.MaxMemoryPages == 0 {
		o.MaxMemoryPages = 16
	}
	if o.MaxMemoryPages > MaxPages {
		o.MaxMemoryPages = MaxPages
	}
	if o.MemoryPages > MaxPages {
		o.MemoryPages = MaxPages
	}
	if o.MaxMemoryPages < o.MemoryPages {
		o.MaxMemoryPages = o.MemoryPages
	}
	if o.HeapBase == 0 {
		o.HeapBase = 16
	}
	return o
}

// type indices
const (
	typeHandle  = iota // (i32) -> ()
	typeRealloc        // (i32 i32 i32 i32) -> i32
	typeMake           // (i32 i32) -> i32
	typeGetName        // (i32) -> i32
	typeDoThing        // (i32 i32 i32) -> ()
)

// function indices; imports come first
const (
	fnPrintR uint32 = iota
	fnDropThingR
	fnRealloc
	fnMakeDemo
	fnGetName
	fnDoThing
	fnDropDemo
)

const globalHeap uint32 = 0

// Build assembles the guest and returns the module binary.
func Build(opts Options) []byte {
	return Module(opts).Encode()
}

// Module assembles the guest module.
func Module(opts Options) *wasm.Module {
	opts = opts.withDefaults()
	i32 := wasm.ValI32
	maxPages := opts.MaxMemoryPages

	return &wasm.Module{
		Types: []wasm.FuncType{
			typeHandle:  {Params: []wasm.ValType{i32}},
			typeRealloc: {Params: []wasm.ValType{i32, i32, i32, i32}, Results: []wasm.ValType{i32}},
			typeMake:    {Params: []wasm.ValType{i32, i32}, Results: []wasm.ValType{i32}},
			typeGetName: {Params: []wasm.ValType{i32}, Results: []wasm.ValType{i32}},
			typeDoThing: {Params: []wasm.ValType{i32, i32, i32}},
		},
		Imports: []wasm.Import{
			{Module: HostModule, Name: ImportPrintR, Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: typeHandle}},
			{Module: HostModule, Name: ImportDropThingR, Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: typeHandle}},
		},
		Funcs: []uint32{typeRealloc, typeMake, typeGetName, typeDoThing, typeHandle},
		Memories: []wasm.MemoryType{
			{Limits: wasm.Limits{Min: opts.MemoryPages, Max: &maxPages}},
		},
		Globals: []wasm.Global{{
			Type: wasm.GlobalType{ValType: i32, Mutable: true},
			Init: wasm.ConstI32Expr(int32(opts.HeapBase)),
		}},
		Exports: []wasm.Export{
			{Name: ExportMemory, Kind: wasm.KindMemory, Idx: 0},
			{Name: ExportRealloc, Kind: wasm.KindFunc, Idx: fnRealloc},
			{Name: ExportMakeDemo, Kind: wasm.KindFunc, Idx: fnMakeDemo},
			{Name: ExportGetName, Kind: wasm.KindFunc, Idx: fnGetName},
			{Name: ExportDoThing, Kind: wasm.KindFunc, Idx: fnDoThing},
			{Name: ExportDropDemo, Kind: wasm.KindFunc, Idx: fnDropDemo},
		},
		Code: []wasm.FuncBody{
			{Locals: []wasm.LocalEntry{{Count: 2, ValType: i32}}, Code: reallocBody()},
			{Locals: []wasm.LocalEntry{{Count: 1, ValType: i32}}, Code: makeDemoBody()},
			{Code: getNameBody()},
			{Code: doThingBody()},
			{Code: dropDemoBody()},
		},
	}
}

// cabi_realloc(old, old_size, align, new_size) -> ptr
//
// Bump allocator: memory is never reused and old allocations are abandoned.
// Grows memory on demand and traps when growth fails.
func reallocBody() []byte {
	const (
		align   = 2
		newSize = 3
		ptr     = 4
		end     = 5
	)
	return wasm.EncodeInstructions([]wasm.Instruction{
		// ptr = (heap + align - 1) & -align
		wasm.GlobalGet(globalHeap),
		wasm.LocalGet(align),
		wasm.Op(wasm.OpI32Add),
		wasm.I32Const(1),
		wasm.Op(wasm.OpI32Sub),
		wasm.I32Const(0),
		wasm.LocalGet(align),
		wasm.Op(wasm.OpI32Sub),
		wasm.Op(wasm.OpI32And),
		wasm.LocalTee(ptr),

		// end = ptr + new_size
		wasm.LocalGet(newSize),
		wasm.Op(wasm.OpI32Add),
		wasm.LocalTee(end),

		// if end > memory.size * 64KiB: grow by ceil((end - size) / 64KiB) pages
		wasm.Op(wasm.OpMemorySize),
		wasm.I32Const(16),
		wasm.Op(wasm.OpI32Shl),
		wasm.Op(wasm.OpI32GtU),
		wasm.If(wasm.BlockTypeVoid),
		wasm.LocalGet(end),
		wasm.Op(wasm.OpMemorySize),
		wasm.I32Const(16),
		wasm.Op(wasm.OpI32Shl),
		wasm.Op(wasm.OpI32Sub),
		wasm.I32Const(int32(wasm.PageSize - 1)),
		wasm.Op(wasm.OpI32Add),
		wasm.I32Const(16),
		wasm.Op(wasm.OpI32ShrU),
		wasm.Op(wasm.OpMemoryGrow),
		wasm.I32Const(-1),
		wasm.Op(wasm.OpI32Eq),
		wasm.If(wasm.BlockTypeVoid),
		wasm.Op(wasm.OpUnreachable),
		wasm.Op(wasm.OpEnd),
		wasm.Op(wasm.OpEnd),

		wasm.LocalGet(end),
		wasm.GlobalSet(globalHeap),
		wasm.LocalGet(ptr),
		wasm.Op(wasm.OpEnd),
	})
}

// make-demo(name_ptr, name_len) -> rep
//
// The demo object keeps pointing at the caller's buffer; the host allocated
// it with cabi_realloc and never frees it.
func makeDemoBody() []byte {
	const (
		namePtr = 0
		nameLen = 1
		rep     = 2
	)
	return wasm.EncodeInstructions([]wasm.Instruction{
		wasm.I32Const(0),
		wasm.I32Const(0),
		wasm.I32Const(4),
		wasm.I32Const(DemoSize),
		wasm.Call(fnRealloc),
		wasm.LocalTee(rep),
		wasm.LocalGet(namePtr),
		wasm.I32Store(0),
		wasm.LocalGet(rep),
		wasm.LocalGet(nameLen),
		wasm.I32Store(4),
		wasm.LocalGet(rep),
		wasm.Op(wasm.OpEnd),
	})
}

// get-name(rep) -> retptr to {ptr, len}
//
// A demo object starts with its name, so the rep itself is the return area.
// Traps on a null rep or a dropped object (null name pointer).
func getNameBody() []byte {
	return wasm.EncodeInstructions([]wasm.Instruction{
		wasm.LocalGet(0),
		wasm.Op(wasm.OpI32Eqz),
		wasm.If(wasm.BlockTypeVoid),
		wasm.Op(wasm.OpUnreachable),
		wasm.Op(wasm.OpEnd),
		wasm.LocalGet(0),
		wasm.I32Load(0),
		wasm.Op(wasm.OpI32Eqz),
		wasm.If(wasm.BlockTypeVoid),
		wasm.Op(wasm.OpUnreachable),
		wasm.Op(wasm.OpEnd),
		wasm.LocalGet(0),
		wasm.Op(wasm.OpEnd),
	})
}

// do-thing(z, y: own<thing-r>, x: own<demo>)
//
// Prints y through the host, then drops both owned values. z is unused.
func doThingBody() []byte {
	const (
		y = 1
		x = 2
	)
	return wasm.EncodeInstructions([]wasm.Instruction{
		wasm.LocalGet(y),
		wasm.Call(fnPrintR),
		wasm.LocalGet(y),
		wasm.Call(fnDropThingR),
		wasm.LocalGet(x),
		wasm.Call(fnDropDemo),
		wasm.Op(wasm.OpEnd),
	})
}

// [resource-drop]demo(rep) zeroes the object.
func dropDemoBody() []byte {
	return wasm.EncodeInstructions([]wasm.Instruction{
		wasm.LocalGet(0),
		wasm.I32Const(0),
		wasm.I32Store(0),
		wasm.LocalGet(0),
		wasm.I32Const(0),
		wasm.I32Store(4),
		wasm.Op(wasm.OpEnd),
	})
}
