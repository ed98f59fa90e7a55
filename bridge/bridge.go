package bridge

import (
	"context"
	"unicode/utf8"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/guest"
	"github.com/wippyai/wasm-bridge/resource"
	"github.com/wippyai/wasm-bridge/wasm"
)

// thingRType is the resource type ID of thing-r in the host table.
const thingRType resource.TypeID = 1

// Bridge connects the host to one guest instance.
// A Bridge is not safe for concurrent use.
type Bridge struct {
	cfg     Config
	log     *zap.Logger
	decl    *Declarations
	runtime wazero.Runtime
	guest   api.Module
	memory  *guestMemory
	alloc   *guestAllocator
	table   *resource.Table
	things  *resource.Typed[*ownedThing]
	demos   map[uint32]*Demo
	hostErr *errors.Error

	makeDemo api.Function
	getName  api.Function
	doThing  api.Function
	dropDemo api.Function

	closed bool
}

// New compiles and instantiates the guest and registers the host callbacks.
// The guest's exports are checked against Declare before instantiation.
func New(ctx context.Context, cfg Config) (*Bridge, error) {
	cfg = cfg.withDefaults()

	b := &Bridge{
		cfg:   cfg,
		log:   cfg.Logger,
		decl:  Declare(),
		table: resource.NewTable(),
		demos: make(map[uint32]*Demo),
	}
	b.things = resource.NewTyped[*ownedThing](b.table, thingRType)
	b.table.Subscribe(resource.ObserverFunc(b.onResourceEvent))

	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	b.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	if err := b.instantiateHost(ctx); err != nil {
		_ = b.runtime.Close(ctx)
		return nil, err
	}
	if err := b.instantiateGuest(ctx); err != nil {
		_ = b.runtime.Close(ctx)
		return nil, err
	}

	b.log.Debug("bridge opened", zap.Uint32("memory_bytes", b.memory.Size()))
	return b, nil
}

func (b *Bridge) instantiateHost(ctx context.Context) error {
	handlers := map[string]api.GoModuleFunc{
		guest.ImportPrintR:     b.hostPrintR,
		guest.ImportDropThingR: b.hostDropThingR,
	}

	builder := b.runtime.NewHostModuleBuilder(guest.HostModule)
	for _, op := range b.decl.Imports {
		fn, ok := handlers[op.Name]
		if !ok {
			return errors.New(errors.PhaseDeclare, errors.KindNotFound).
				Op(op.Name).
				Detail("no host implementation").
				Build()
		}
		ft, err := op.LowerType()
		if err != nil {
			return err
		}
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(fn, valueTypes(ft.Params), valueTypes(ft.Results)).
			WithName(op.Name).
			Export(op.Name)
	}

	if _, err := builder.Instantiate(ctx); err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindInstantiation, err, "instantiate host module")
	}
	return nil
}

func (b *Bridge) instantiateGuest(ctx context.Context) error {
	bin := b.cfg.Module
	if bin == nil {
		bin = guest.Build(b.cfg.Guest)
	}

	compiled, err := b.runtime.CompileModule(ctx, bin)
	if err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindInstantiation, err, "compile guest")
	}
	if err := b.checkGuest(compiled); err != nil {
		return err
	}

	mod, err := b.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindInstantiation, err, "instantiate guest")
	}

	b.guest = mod
	b.memory = &guestMemory{mem: mod.Memory()}
	b.alloc = &guestAllocator{fn: mod.ExportedFunction(guest.ExportRealloc)}
	b.makeDemo = mod.ExportedFunction(guest.ExportMakeDemo)
	b.getName = mod.ExportedFunction(guest.ExportGetName)
	b.doThing = mod.ExportedFunction(guest.ExportDoThing)
	b.dropDemo = mod.ExportedFunction(guest.ExportDropDemo)
	return nil
}

// checkGuest verifies the guest exports every declared operation with the
// flattened signature, plus its memory and allocator.
func (b *Bridge) checkGuest(compiled wazero.CompiledModule) error {
	if _, ok := compiled.ExportedMemories()[guest.ExportMemory]; !ok {
		return errors.MissingExport(guest.ExportMemory)
	}

	defs := compiled.ExportedFunctions()
	i32 := wasm.ValI32
	want := map[string]wasm.FuncType{
		guest.ExportRealloc: {Params: []wasm.ValType{i32, i32, i32, i32}, Results: []wasm.ValType{i32}},
	}
	for _, op := range b.decl.Exports {
		ft, err := op.LiftType()
		if err != nil {
			return err
		}
		want[op.Name] = ft
	}

	for name, ft := range want {
		def, ok := defs[name]
		if !ok {
			return errors.MissingExport(name)
		}
		got := wasm.FuncType{Params: valTypes(def.ParamTypes()), Results: valTypes(def.ResultTypes())}
		if !got.Equal(ft) {
			return errors.New(errors.PhaseLoad, errors.KindSignature).
				Op(name).
				Detail("guest exports %s, declared %s", got, ft).
				Build()
		}
	}
	return nil
}

// Close releases the guest and the host table. Demos still open become
// invalid. Close is idempotent.
func (b *Bridge) Close(ctx context.Context) error {
	if b.closed {
		return nil
	}
	b.closed = true

	for rep, d := range b.demos {
		d.rep = 0
		delete(b.demos, rep)
	}

	var firstErr error
	if err := b.runtime.Close(ctx); err != nil {
		firstErr = err
	}
	if err := b.table.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	b.guest = nil
	b.memory = nil
	b.alloc = nil
	b.log.Debug("bridge closed")
	return firstErr
}

// LiveDemos returns the number of demos created and not yet closed or moved.
func (b *Bridge) LiveDemos() int {
	return len(b.demos)
}

// LiveThings returns the number of thing-r handles held by the host table.
func (b *Bridge) LiveThings() int {
	return b.things.Len()
}

// MakeDemo constructs a guest demo object named label.
func (b *Bridge) MakeDemo(ctx context.Context, label string) (*Demo, error) {
	const op = guest.ExportMakeDemo
	if err := b.checkOpen(op); err != nil {
		return nil, err
	}
	if !utf8.ValidString(label) {
		err := errors.InvalidUTF8(errors.PhaseEncode, []string{"name"}, []byte(label))
		err.Op = op
		return nil, err
	}
	if len(label) > b.cfg.MaxLabelBytes {
		return nil, errors.InvalidInput(op, "label is %d bytes, limit is %d", len(label), b.cfg.MaxLabelBytes)
	}

	ptr, err := b.lowerString(ctx, op, label)
	if err != nil {
		return nil, err
	}

	res, err := b.call(ctx, op, b.makeDemo, uint64(ptr), uint64(len(label)))
	if err != nil {
		return nil, err
	}
	rep := api.DecodeU32(res[0])
	if rep == 0 {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidInput).
			Op(op).
			Detail("guest returned a null demo").
			Build()
	}

	d := &Demo{bridge: b, rep: rep}
	b.demos[rep] = d
	b.log.Debug("demo created", zap.Uint32("rep", rep), zap.Uint32("name_ptr", ptr), zap.Int("name_len", len(label)))
	return d, nil
}

// GetName reads the name of d. d stays owned by the caller.
func (b *Bridge) GetName(ctx context.Context, d *Demo) (string, error) {
	const op = guest.ExportGetName
	if err := b.checkOpen(op); err != nil {
		return "", err
	}
	if err := b.checkDemo(op, d, nil); err != nil {
		return "", err
	}

	res, err := b.call(ctx, op, b.getName, uint64(d.rep))
	if err != nil {
		return "", err
	}
	retptr := api.DecodeU32(res[0])

	name, err := b.liftString(retptr)
	if err != nil {
		e := err.(*errors.Error)
		e.Op = op
		return "", e
	}
	b.log.Debug("demo name read", zap.Uint32("rep", d.rep), zap.Uint32("retptr", retptr))
	return name, nil
}

// DoThing passes s to the guest. s.Y is transferred to the guest for the
// duration of the call and s.X is moved: it is invalid once DoThing returns,
// whether or not the call succeeds.
func (b *Bridge) DoThing(ctx context.Context, s SharedThing) error {
	const op = guest.ExportDoThing
	if err := b.checkOpen(op); err != nil {
		return err
	}
	if s.Y == nil {
		return errors.NilPointer(op, []string{TypeSharedThing, "y"}, "*bridge.ThingR")
	}
	if err := b.checkDemo(op, s.X, []string{TypeSharedThing, "x"}); err != nil {
		return err
	}

	y, err := b.things.Insert(&ownedThing{r: s.Y, log: b.log})
	if err != nil {
		return errors.New(errors.PhaseEncode, errors.KindInvalidInput).
			Op(op).
			Path(TypeSharedThing, "y").
			Cause(err).
			Build()
	}

	x := s.X.rep
	s.X.rep = 0
	delete(b.demos, x)

	b.log.Debug("passing shared thing",
		zap.Int32("z", s.Z),
		zap.Uint32("y", uint32(y)),
		zap.Uint32("x", x))

	_, callErr := b.call(ctx, op, b.doThing, api.EncodeI32(s.Z), uint64(y), uint64(x))

	if _, ok := b.things.Get(y); ok {
		_, _ = b.things.Take(y)
		if callErr == nil {
			return errors.New(errors.PhaseGuest, errors.KindLeaked).
				Op(op).
				Path(TypeSharedThing, "y").
				Detail("guest did not drop thing-r handle %d", y).
				Build()
		}
	}
	return callErr
}

func (b *Bridge) closeDemo(ctx context.Context, d *Demo) error {
	const op = guest.ExportDropDemo
	if b.closed {
		return nil
	}
	rep := d.rep
	d.rep = 0
	delete(b.demos, rep)

	if _, err := b.call(ctx, op, b.dropDemo, uint64(rep)); err != nil {
		return err
	}
	b.log.Debug("demo dropped", zap.Uint32("rep", rep))
	return nil
}

func (b *Bridge) checkOpen(op string) error {
	if b.closed {
		return errors.New(errors.PhaseRuntime, errors.KindClosed).
			Op(op).
			Detail("bridge is closed").
			Build()
	}
	return nil
}

func (b *Bridge) checkDemo(op string, d *Demo, path []string) error {
	if d == nil {
		return errors.NilPointer(op, path, "*bridge.Demo")
	}
	if d.bridge != b {
		return errors.New(errors.PhaseEncode, errors.KindInvalidInput).
			Op(op).
			Path(path...).
			GoType("*bridge.Demo").
			Detail("demo belongs to another bridge").
			Build()
	}
	if d.rep == 0 {
		e := errors.Moved(op, "*bridge.Demo")
		e.Path = path
		return e
	}
	return nil
}

// lowerString copies s into guest memory allocated with cabi_realloc.
func (b *Bridge) lowerString(ctx context.Context, op, s string) (uint32, error) {
	b.alloc.setContext(ctx)
	defer b.alloc.setContext(nil)

	size := uint32(len(s))
	ptr, err := b.alloc.Alloc(size, 1)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, b.abort(op, ctxErr)
		}
		e := err.(*errors.Error)
		e.Op = op
		return 0, e
	}
	if err := b.memory.Write(ptr, []byte(s)); err != nil {
		e := err.(*errors.Error)
		e.Op = op
		e.Path = []string{"name"}
		return 0, e
	}
	return ptr, nil
}

// liftString reads a {ptr, len} pair at retptr and copies the string out.
func (b *Bridge) liftString(retptr uint32) (string, error) {
	ptr, err := b.memory.ReadU32(retptr)
	if err != nil {
		return "", err
	}
	n, err := b.memory.ReadU32(retptr + 4)
	if err != nil {
		return "", err
	}
	data, err := b.memory.Read(ptr, n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", errors.InvalidUTF8(errors.PhaseDecode, []string{"name"}, data)
	}
	return string(data), nil
}

// call invokes a guest export. A failing host callback traps the guest; the
// callback's own error is returned in that case.
func (b *Bridge) call(ctx context.Context, op string, fn api.Function, params ...uint64) ([]uint64, error) {
	b.hostErr = nil
	res, err := fn.Call(ctx, params...)
	if err == nil {
		return res, nil
	}

	if hostErr := b.hostErr; hostErr != nil {
		b.hostErr = nil
		return nil, hostErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, b.abort(op, ctxErr)
	}
	b.log.Debug("guest trapped", zap.String("op", op), zap.Error(err))
	return nil, errors.Trap(op, err)
}

// abort closes the bridge after a call was cancelled. wazero closes the guest
// module when the context is done, so nothing further can run on it.
func (b *Bridge) abort(op string, ctxErr error) *errors.Error {
	b.log.Debug("call aborted, closing bridge", zap.String("op", op), zap.Error(ctxErr))
	if err := b.Close(context.Background()); err != nil {
		b.log.Warn("close after abort", zap.Error(err))
	}
	return errors.New(errors.PhaseRuntime, errors.KindClosed).
		Op(op).
		Cause(ctxErr).
		Detail("call aborted, bridge closed").
		Build()
}

// ownedThing holds a ThingR while the guest owns its handle.
type ownedThing struct {
	r   *ThingR
	log *zap.Logger
}

// Drop runs when the guest drops the handle, or when the bridge closes with
// the handle still live.
func (o *ownedThing) Drop() {
	o.log.Debug("thing-r destroyed", zap.Uint64("value", o.r.Value))
}

// hostPrintR implements print-r(borrow<thing-r>).
func (b *Bridge) hostPrintR(_ context.Context, _ api.Module, stack []uint64) {
	const op = guest.ImportPrintR
	h := resource.Handle(api.DecodeU32(stack[0]))

	r, err := b.things.Borrow(h)
	if err != nil {
		b.fail(errors.New(errors.PhaseHost, errors.KindNotFound).
			Op(op).
			Path(TypeThingR).
			Value(uint32(h)).
			Cause(err).
			Detail("borrow of handle %d", h).
			Build())
	}
	printErr := PrintR(b.cfg.Stdout, r.r)
	if err := b.things.Return(h); err != nil {
		b.fail(errors.Wrap(errors.PhaseHost, errors.KindNotFound, err, "return borrow"))
	}
	if printErr != nil {
		b.fail(errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Op(op).
			Cause(printErr).
			Detail("write output").
			Build())
	}
}

// hostDropThingR implements [resource-drop]thing-r(own<thing-r>).
func (b *Bridge) hostDropThingR(_ context.Context, _ api.Module, stack []uint64) {
	const op = guest.ImportDropThingR
	h := resource.Handle(api.DecodeU32(stack[0]))

	if _, err := b.things.Take(h); err != nil {
		b.fail(errors.New(errors.PhaseHost, errors.KindNotFound).
			Op(op).
			Path(TypeThingR).
			Value(uint32(h)).
			Cause(err).
			Detail("drop of handle %d", h).
			Build())
	}
}

// fail records err and traps the guest.
func (b *Bridge) fail(err *errors.Error) {
	b.hostErr = err
	panic(err)
}

func (b *Bridge) onResourceEvent(e resource.Event) {
	b.log.Debug("thing-r",
		zap.Stringer("event", e.Type),
		zap.Uint32("handle", uint32(e.Handle)))
}

func valueTypes(vs []wasm.ValType) []api.ValueType {
	out := make([]api.ValueType, len(vs))
	for i, v := range vs {
		out[i] = api.ValueType(v)
	}
	return out
}

func valTypes(vs []api.ValueType) []wasm.ValType {
	out := make([]wasm.ValType, len(vs))
	for i, v := range vs {
		out[i] = wasm.ValType(v)
	}
	return out
}
