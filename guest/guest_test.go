package guest_test

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-bridge/guest"
)

type hostCall struct {
	name   string
	handle uint32
}

func instantiate(t *testing.T, opts guest.Options) (api.Module, *[]hostCall) {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { r.Close(ctx) })

	calls := &[]hostCall{}
	_, err := r.NewHostModuleBuilder(guest.HostModule).
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, h uint32) {
			*calls = append(*calls, hostCall{guest.ImportPrintR, h})
		}).
		Export(guest.ImportPrintR).
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, h uint32) {
			*calls = append(*calls, hostCall{guest.ImportDropThingR, h})
		}).
		Export(guest.ImportDropThingR).
		Instantiate(ctx)
	if err != nil {
		t.Fatalf("host module: %v", err)
	}

	mod, err := r.Instantiate(ctx, guest.Build(opts))
	if err != nil {
		t.Fatalf("instantiate guest: %v", err)
	}
	return mod, calls
}

func call(t *testing.T, mod api.Module, name string, params ...uint64) []uint64 {
	t.Helper()
	res, err := mod.ExportedFunction(name).Call(context.Background(), params...)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return res
}

func TestExports(t *testing.T) {
	mod, _ := instantiate(t, guest.Options{})

	for _, name := range []string{
		guest.ExportRealloc, guest.ExportMakeDemo, guest.ExportGetName,
		guest.ExportDoThing, guest.ExportDropDemo,
	} {
		if mod.ExportedFunction(name) == nil {
			t.Errorf("missing export %q", name)
		}
	}
	if mod.ExportedMemory(guest.ExportMemory) == nil {
		t.Error("missing memory export")
	}
}

func TestRealloc_Alignment(t *testing.T) {
	mod, _ := instantiate(t, guest.Options{HeapBase: 16})

	first := call(t, mod, guest.ExportRealloc, 0, 0, 1, 1)[0]
	if first != 16 {
		t.Fatalf("first allocation = %d, want 16", first)
	}
	second := call(t, mod, guest.ExportRealloc, 0, 0, 8, 4)[0]
	if second != 24 {
		t.Fatalf("aligned allocation = %d, want 24", second)
	}
}

func TestRealloc_GrowsMemory(t *testing.T) {
	mod, _ := instantiate(t, guest.Options{MemoryPages: 1, MaxMemoryPages: 4})

	ptr := call(t, mod, guest.ExportRealloc, 0, 0, 1, 70000)[0]
	if ptr != 16 {
		t.Fatalf("ptr = %d, want 16", ptr)
	}
	if size := mod.Memory().Size(); size != 2*65536 {
		t.Fatalf("memory size = %d, want %d", size, 2*65536)
	}
	if !mod.Memory().Write(uint32(ptr)+69999, []byte{1}) {
		t.Fatal("last byte of allocation should be writable")
	}
}

func TestRealloc_TrapsWhenGrowthFails(t *testing.T) {
	mod, _ := instantiate(t, guest.Options{MemoryPages: 1, MaxMemoryPages: 2})

	_, err := mod.ExportedFunction(guest.ExportRealloc).Call(context.Background(), 0, 0, 1, 3*65536)
	if err == nil {
		t.Fatal("expected trap when memory cannot grow")
	}
}

func TestMakeDemoGetName(t *testing.T) {
	mod, _ := instantiate(t, guest.Options{})
	mem := mod.Memory()

	name := []byte("demo of cxx::bridge")
	ptr := uint32(call(t, mod, guest.ExportRealloc, 0, 0, 1, uint64(len(name)))[0])
	if !mem.Write(ptr, name) {
		t.Fatal("write name")
	}

	rep := call(t, mod, guest.ExportMakeDemo, uint64(ptr), uint64(len(name)))[0]
	if rep == 0 {
		t.Fatal("make-demo returned zero rep")
	}

	ret := uint32(call(t, mod, guest.ExportGetName, rep)[0])
	gotPtr, _ := mem.ReadUint32Le(ret)
	gotLen, _ := mem.ReadUint32Le(ret + 4)
	got, ok := mem.Read(gotPtr, gotLen)
	if !ok || string(got) != string(name) {
		t.Fatalf("get-name = %q, want %q", got, name)
	}

	call(t, mod, guest.ExportDropDemo, rep)
	gotLen, _ = mem.ReadUint32Le(ret + 4)
	if gotLen != 0 {
		t.Fatalf("dropped demo name length = %d, want 0", gotLen)
	}

	if _, err := mod.ExportedFunction(guest.ExportGetName).Call(context.Background(), rep); err == nil {
		t.Fatal("get-name on a dropped demo should trap")
	}
}

func TestGetName_ZeroRepTraps(t *testing.T) {
	mod, _ := instantiate(t, guest.Options{})

	if _, err := mod.ExportedFunction(guest.ExportGetName).Call(context.Background(), 0); err == nil {
		t.Fatal("expected trap for zero rep")
	}
}

func TestDoThing_CallsHostInOrder(t *testing.T) {
	mod, calls := instantiate(t, guest.Options{})

	ptr := call(t, mod, guest.ExportRealloc, 0, 0, 1, 1)[0]
	rep := call(t, mod, guest.ExportMakeDemo, ptr, 1)[0]

	call(t, mod, guest.ExportDoThing, api.EncodeI32(222), 5, rep)

	want := []hostCall{
		{guest.ImportPrintR, 5},
		{guest.ImportDropThingR, 5},
	}
	if len(*calls) != len(want) {
		t.Fatalf("host calls = %v, want %v", *calls, want)
	}
	for i := range want {
		if (*calls)[i] != want[i] {
			t.Errorf("call %d = %v, want %v", i, (*calls)[i], want[i])
		}
	}

	n, _ := mod.Memory().ReadUint32Le(uint32(rep) + 4)
	if n != 0 {
		t.Fatal("do-thing should drop the demo it was given")
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := guest.DefaultOptions()
	if opts.MemoryPages != 1 || opts.MaxMemoryPages != 16 || opts.HeapBase != 16 {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
}

func TestOptions_ClampPages(t *testing.T) {
	tests := []struct {
		name     string
		opts     guest.Options
		min, max uint32
	}{
		{"max above limit", guest.Options{MaxMemoryPages: 65536}, 1, guest.MaxPages},
		{"initial above limit", guest.Options{MemoryPages: 70000, MaxMemoryPages: 70000}, guest.MaxPages, guest.MaxPages},
		{"initial above max", guest.Options{MemoryPages: 20}, 20, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lim := guest.Module(tt.opts).Memories[0].Limits
			if lim.Min != tt.min || lim.Max == nil || *lim.Max != tt.max {
				t.Fatalf("limits = %d..%v, want %d..%d", lim.Min, lim.Max, tt.min, tt.max)
			}
		})
	}
}
