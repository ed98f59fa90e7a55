// Package wasm encodes small WebAssembly core modules.
//
// It covers the subset of the binary format needed to assemble a guest by
// hand: function types, function and memory imports, memories, globals,
// exports and code.
//
// # Encoding
//
//	mod := &wasm.Module{
//	    Types: []wasm.FuncType{{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}}},
//	    Funcs: []uint32{0},
//	    Exports: []wasm.Export{{Name: "id", Kind: wasm.KindFunc, Idx: 0}},
//	    Code: []wasm.FuncBody{{Code: wasm.EncodeInstructions([]wasm.Instruction{
//	        wasm.LocalGet(0),
//	        wasm.Op(wasm.OpEnd),
//	    })}},
//	}
//	bin := mod.Encode()
//
// Function indices count imported functions first; use NumImportedFuncs to
// offset local function indices.
package wasm
