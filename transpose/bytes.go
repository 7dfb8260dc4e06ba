package transpose

import "unsafe"

// floatBytes reinterprets a []float64 as a []byte without copying — the same
// raw-memory-view trick the teacher's runner package uses throughout
// binding.go/kernel_arguments.go to hand Go slices to a foreign call
// boundary. Here the foreign boundary is comm.Comm's byte-oriented transport.
func floatBytes(f []float64) []byte {
	if len(f) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&f[0])), len(f)*8)
}
