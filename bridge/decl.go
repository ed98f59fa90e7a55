package bridge

import (
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/guest"
	"github.com/wippyai/wasm-bridge/wasm"
)

// Names of the declared shapes.
const (
	TypeThingC      = "thing-c"
	TypeRot13Filter = "rot13-filter"
	TypeThingR      = "thing-r"
	TypeDemo        = "demo"
	TypeSharedThing = "shared-thing"
)

// Canonical ABI flattening limits.
const (
	maxFlatParams  = 16
	maxFlatResults = 1
)

// Param is a named operation parameter.
type Param struct {
	Type wit.Type
	Name string
}

// Operation is one function crossing the bridge.
type Operation struct {
	Name    string
	Params  []Param
	Results []wit.Type
}

// Declarations is the fixed set of shapes and operations shared by the host
// and the guest.
type Declarations struct {
	Types map[string]*wit.TypeDef

	// Exports are implemented by the guest.
	Exports []Operation

	// Imports are implemented by the host.
	Imports []Operation
}

// Declare returns the bridge declarations.
func Declare() *Declarations {
	thingC := named(TypeThingC, &wit.Record{})
	rot13 := named(TypeRot13Filter, &wit.Record{
		Fields: []wit.Field{{Name: "x", Type: wit.S32{}}},
	})
	thingR := named(TypeThingR, &wit.Resource{})
	demo := named(TypeDemo, &wit.Resource{})
	shared := named(TypeSharedThing, &wit.Record{
		Fields: []wit.Field{
			{Name: "z", Type: wit.S32{}},
			{Name: "y", Type: &wit.TypeDef{Kind: &wit.Own{Type: thingR}}},
			{Name: "x", Type: &wit.TypeDef{Kind: &wit.Own{Type: demo}}},
		},
	})

	return &Declarations{
		Types: map[string]*wit.TypeDef{
			TypeThingC:      thingC,
			TypeRot13Filter: rot13,
			TypeThingR:      thingR,
			TypeDemo:        demo,
			TypeSharedThing: shared,
		},
		Exports: []Operation{
			{
				Name:    guest.ExportMakeDemo,
				Params:  []Param{{Name: "name", Type: wit.String{}}},
				Results: []wit.Type{&wit.TypeDef{Kind: &wit.Own{Type: demo}}},
			},
			{
				Name:    guest.ExportGetName,
				Params:  []Param{{Name: "self", Type: &wit.TypeDef{Kind: &wit.Borrow{Type: demo}}}},
				Results: []wit.Type{wit.String{}},
			},
			{
				Name:   guest.ExportDoThing,
				Params: []Param{{Name: "state", Type: shared}},
			},
			{
				Name:   guest.ExportDropDemo,
				Params: []Param{{Name: "self", Type: &wit.TypeDef{Kind: &wit.Own{Type: demo}}}},
			},
		},
		Imports: []Operation{
			{
				Name:   guest.ImportPrintR,
				Params: []Param{{Name: "r", Type: &wit.TypeDef{Kind: &wit.Borrow{Type: thingR}}}},
			},
			{
				Name:   guest.ImportDropThingR,
				Params: []Param{{Name: "self", Type: &wit.TypeDef{Kind: &wit.Own{Type: thingR}}}},
			},
		},
	}
}

func named(name string, kind wit.TypeDefKind) *wit.TypeDef {
	return &wit.TypeDef{Name: &name, Kind: kind}
}

// Export returns the guest export with the given name.
func (d *Declarations) Export(name string) (Operation, bool) {
	for _, op := range d.Exports {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}

// Import returns the host import with the given name.
func (d *Declarations) Import(name string) (Operation, bool) {
	for _, op := range d.Imports {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}

// LiftType returns the core signature of op when the guest implements it.
// Results that flatten to more than one value come back through a pointer.
func (op Operation) LiftType() (wasm.FuncType, error) {
	params, err := op.flatParams()
	if err != nil {
		return wasm.FuncType{}, err
	}
	results, err := op.flatResults()
	if err != nil {
		return wasm.FuncType{}, err
	}
	if len(results) > maxFlatResults {
		results = []wasm.ValType{wasm.ValI32}
	}
	return wasm.FuncType{Params: params, Results: results}, nil
}

// LowerType returns the core signature of op when the host implements it.
// Results that flatten to more than one value are written through a pointer
// passed as the last parameter.
func (op Operation) LowerType() (wasm.FuncType, error) {
	params, err := op.flatParams()
	if err != nil {
		return wasm.FuncType{}, err
	}
	results, err := op.flatResults()
	if err != nil {
		return wasm.FuncType{}, err
	}
	if len(results) > maxFlatResults {
		params = append(params, wasm.ValI32)
		results = nil
	}
	return wasm.FuncType{Params: params, Results: results}, nil
}

func (op Operation) flatParams() ([]wasm.ValType, error) {
	var flat []wasm.ValType
	for _, p := range op.Params {
		f, err := Flatten(p.Type)
		if err != nil {
			return nil, withOp(err, op.Name, p.Name)
		}
		flat = append(flat, f...)
	}
	if len(flat) > maxFlatParams {
		return []wasm.ValType{wasm.ValI32}, nil
	}
	return flat, nil
}

func (op Operation) flatResults() ([]wasm.ValType, error) {
	var flat []wasm.ValType
	for _, r := range op.Results {
		f, err := Flatten(r)
		if err != nil {
			return nil, withOp(err, op.Name, "result")
		}
		flat = append(flat, f...)
	}
	return flat, nil
}

// Flatten returns the core value types t lowers to.
func Flatten(t wit.Type) ([]wasm.ValType, error) {
	switch t := t.(type) {
	case wit.Bool, wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32, wit.Char:
		return []wasm.ValType{wasm.ValI32}, nil
	case wit.U64, wit.S64:
		return []wasm.ValType{wasm.ValI64}, nil
	case wit.F32:
		return []wasm.ValType{wasm.ValF32}, nil
	case wit.F64:
		return []wasm.ValType{wasm.ValF64}, nil
	case wit.String:
		return []wasm.ValType{wasm.ValI32, wasm.ValI32}, nil
	case *wit.TypeDef:
		switch kind := t.Kind.(type) {
		case *wit.Record:
			var flat []wasm.ValType
			for _, f := range kind.Fields {
				ff, err := Flatten(f.Type)
				if err != nil {
					return nil, err
				}
				flat = append(flat, ff...)
			}
			return flat, nil
		case *wit.Own, *wit.Borrow:
			return []wasm.ValType{wasm.ValI32}, nil
		case wit.Type:
			return Flatten(kind)
		}
	}
	return nil, errors.New(errors.PhaseDeclare, errors.KindSignature).
		Detail("type %T cannot cross the bridge", t).
		Build()
}

func withOp(err error, op, param string) error {
	if e, ok := err.(*errors.Error); ok {
		e.Op = op
		e.Path = append([]string{param}, e.Path...)
	}
	return err
}
