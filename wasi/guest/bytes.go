//go:build wasip1

package guest

import "unsafe"

// Buffers the host has allocated in guest memory, by address. An entry
// keeps its buffer reachable until the guest takes it.
var pinned = map[uint32][]byte{}

//go:wasmexport d1_alloc
func allocBytes(size uint32) uint32 {
	if size == 0 {
		size = 1
	}
	buf := make([]byte, size)
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0])))
	pinned[ptr] = buf
	return ptr
}

// takeBytes returns the first size bytes of the buffer at ptr and unpins it.
func takeBytes(ptr, size uint32) []byte {
	buf, ok := pinned[ptr]
	if !ok || size == 0 {
		return nil
	}
	delete(pinned, ptr)
	return buf[:size:size]
}
