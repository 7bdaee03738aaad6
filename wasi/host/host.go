// Package host serves D1 binding requests to WebAssembly guests running in
// wazero. A guest imports env.d1_host_handler (see wasi/guest) and every
// request it sends is answered by a Handler, normally
// (*sqlproxy/host.SQLHost).HandleRequest.
package host

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

const (
	ModuleName    = "env"
	HandlerExport = "d1_host_handler"
	// AllocExport is the guest function the host calls to reserve memory
	// for a response.
	AllocExport = "d1_alloc"
)

// Handler answers one request payload.
type Handler func(request []byte) ([]byte, error)

// Install instantiates the env host module exporting d1_host_handler.
// It must run before any guest importing it is instantiated.
func Install(ctx context.Context, r wazero.Runtime, handler Handler, logger *slog.Logger) (api.Module, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return r.NewHostModuleBuilder(ModuleName).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, reqOffset, reqByteCount, destPtr uint32) int32 {
			return serve(ctx, moduleMemory{m}, handler, logger, reqOffset, reqByteCount, destPtr)
		}).
		Export(HandlerExport).
		Instantiate(ctx)
}

// guestMemory is the part of a guest module serve needs.
type guestMemory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, data []byte) bool
	WriteUint32Le(offset, v uint32) bool
	Alloc(ctx context.Context, size uint32) (uint32, error)
}

type moduleMemory struct {
	m api.Module
}

func (mm moduleMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	return mm.m.Memory().Read(offset, byteCount)
}

func (mm moduleMemory) Write(offset uint32, data []byte) bool {
	return mm.m.Memory().Write(offset, data)
}

func (mm moduleMemory) WriteUint32Le(offset, v uint32) bool {
	return mm.m.Memory().WriteUint32Le(offset, v)
}

func (mm moduleMemory) Alloc(ctx context.Context, size uint32) (uint32, error) {
	alloc := mm.m.ExportedFunction(AllocExport)
	if alloc == nil {
		return 0, fmt.Errorf("guest does not export %s", AllocExport)
	}
	results, err := alloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, err
	}
	if len(results) != 1 {
		return 0, fmt.Errorf("%s returned %d results, expected 1", AllocExport, len(results))
	}
	return uint32(results[0]), nil
}

// serve runs one request. Failures of the handler are returned to the
// guest as a negative size; failures to reach guest memory panic, which
// aborts the guest call.
func serve(ctx context.Context, mem guestMemory, handler Handler, logger *slog.Logger, reqOffset, reqByteCount, destPtr uint32) int32 {
	view, ok := mem.Read(reqOffset, reqByteCount)
	if !ok {
		panic(fmt.Sprintf("d1_host_handler: Memory.Read(%d, %d) out of range", reqOffset, reqByteCount))
	}
	request := make([]byte, len(view))
	copy(request, view)

	response, err := handler(request)
	failed := err != nil
	if failed {
		logger.Error("d1_host_handler: request failed", "error", err)
		response = []byte(err.Error())
		if len(response) == 0 {
			response = []byte("unknown host error")
		}
	}

	var ptr uint32
	if len(response) > 0 {
		ptr, err = mem.Alloc(ctx, uint32(len(response)))
		if err != nil {
			panic(fmt.Sprintf("d1_host_handler: allocate %d bytes: %v", len(response), err))
		}
		if !mem.Write(ptr, response) {
			panic(fmt.Sprintf("d1_host_handler: Memory.Write(%d, %d bytes) failed", ptr, len(response)))
		}
	}
	if !mem.WriteUint32Le(destPtr, ptr) {
		panic(fmt.Sprintf("d1_host_handler: Memory.WriteUint32Le(%d) failed", destPtr))
	}
	if failed {
		return -int32(len(response))
	}
	return int32(len(response))
}
