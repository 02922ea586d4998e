package vm

// allocator is a bump heap with an 8-byte size header before every block,
// mirroring runtime.cpp's allocator: allocate writes the block size ahead
// of the returned pointer, deallocate reads that header back to know how
// many bytes to release. Freed space is not reused (a toy VM has no
// pressure to coalesce); bytesLive is the net outstanding byte count the
// leak report at program exit is built from.
type allocator struct {
	heap      []byte
	bytesLive int64
}

// allocate reserves payloadSize bytes of usable space plus an 8-byte
// header, writes the header, and returns the offset just past it (the
// pointer a save/load sees). bytesLive counts the header too, so a leak
// report reflects the block's full footprint rather than just its payload.
func (a *allocator) allocate(payloadSize int64) int64 {
	headerOffset := int64(len(a.heap))
	header := make([]byte, 8)
	putU64(header, uint64(payloadSize))
	a.heap = append(a.heap, header...)
	a.heap = append(a.heap, make([]byte, payloadSize)...)
	a.bytesLive += payloadSize + 8
	return headerOffset + 8
}

// deallocate frees the block whose payload starts at ptr, reading its size
// from the 8-byte header immediately before it.
func (a *allocator) deallocate(ptr int64) int64 {
	size := int64(getU64(a.heap[ptr-8 : ptr]))
	a.bytesLive -= size + 8
	return size
}

func (a *allocator) load(ptr, size int64) []byte {
	return a.heap[ptr : ptr+size]
}

func (a *allocator) save(ptr int64, data []byte) {
	copy(a.heap[ptr:ptr+int64(len(data))], data)
}
