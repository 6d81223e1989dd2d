// Package wasmtest builds minimal WebAssembly binaries and helpers for tests
// that need a real, growable linear memory.
package wasmtest

var header = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

const (
	secType   = 1
	secImport = 2
	secFunc   = 3
	secMemory = 5
	secGlobal = 6
	secExport = 7
	secCode   = 10

	kindFunc   = 0x00
	kindMemory = 0x02

	i32 = 0x7f
)

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func name(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func section(id byte, parts ...[]byte) []byte {
	var body []byte
	for _, p := range parts {
		body = append(body, p...)
	}
	out := append([]byte{id}, uleb(uint32(len(body)))...)
	return append(out, body...)
}

func module(sections ...[]byte) []byte {
	out := append([]byte(nil), header...)
	for _, s := range sections {
		out = append(out, s...)
	}
	return out
}

func exportMemory() []byte {
	return append(name("memory"), kindMemory, 0)
}

func exportFunc(n string, idx byte) []byte {
	return append(name(n), kindFunc, idx)
}

func body(code ...byte) []byte {
	return append(uleb(uint32(len(code))), code...)
}

// Empty is a valid module with no sections.
func Empty() []byte {
	return module()
}

// Memory exports a memory of minPages with no maximum.
func Memory(minPages uint32) []byte {
	return module(
		section(secMemory, []byte{1, 0x00}, uleb(minPages)),
		section(secExport, []byte{1}, exportMemory()),
	)
}

// BoundedMemory exports a memory that cannot grow beyond maxPages.
func BoundedMemory(minPages, maxPages uint32) []byte {
	return module(
		section(secMemory, []byte{1, 0x01}, uleb(minPages), uleb(maxPages)),
		section(secExport, []byte{1}, exportMemory()),
	)
}

// Allocator exports memory plus a bump malloc(size) i32 and a no-op free(ptr).
// malloc starts at 1024, aligns to 8 bytes and grows memory one page at a
// time when it runs past the end. It returns 0 when growth fails.
func Allocator() []byte {
	malloc := []byte{
		0x01, 0x01, i32, // one i32 local
		0x23, 0x00, 0x21, 0x01, // local1 = next
		0x23, 0x00, 0x20, 0x00, 0x6a, // next + size
		0x41, 0x07, 0x6a, 0x41, 0x78, 0x71, // +7 &^7
		0x24, 0x00, // next = ...
		0x02, 0x40, 0x03, 0x40,
		0x23, 0x00, 0x3f, 0x00, 0x41, 0x10, 0x74, 0x4d, 0x0d, 0x01, // next <= size<<16 ? break
		0x41, 0x01, 0x40, 0x00, 0x41, 0x7f, 0x46, // grow(1) == -1
		0x04, 0x40, 0x41, 0x00, 0x0f, 0x0b,
		0x0c, 0x00, 0x0b, 0x0b,
		0x20, 0x01, 0x0b,
	}
	free := []byte{0x00, 0x0b}

	return module(
		section(secType, []byte{2, 0x60, 1, i32, 1, i32, 0x60, 1, i32, 0}),
		section(secFunc, []byte{2, 0, 1}),
		section(secMemory, []byte{1, 0x00, 1}),
		section(secGlobal, []byte{1, i32, 0x01, 0x41, 0x80, 0x08, 0x0b}),
		section(secExport, []byte{3}, exportMemory(), exportFunc("malloc", 0), exportFunc("free", 1)),
		section(secCode, []byte{2}, body(malloc...), body(free...)),
	)
}

// Engine looks like an engine build to a probe: it imports a GL entry point
// and a worker dispatch hook from env and exports the allocator and the
// worker entry points. malloc(size) returns size as the pointer and free(ptr)
// zeroes the word at ptr; the other functions do nothing.
func Engine() []byte {
	imports := [][]byte{
		{2},
		name("env"), name("glGetError"), {kindFunc, 0},
		name("env"), name("skwasm_dispatchRenderPictures"), {kindFunc, 3},
	}
	exports := [][]byte{
		{7},
		exportMemory(),
		exportFunc("malloc", 2),
		exportFunc("free", 4),
		exportFunc("surface_renderPicturesOnWorker", 3),
		exportFunc("surface_rasterizeImageOnWorker", 3),
		exportFunc("surface_onRenderComplete", 3),
		exportFunc("surface_onRasterizeComplete", 3),
	}
	return module(
		section(secType, []byte{4, 0x60, 0, 1, i32, 0x60, 1, i32, 0, 0x60, 1, i32, 1, i32, 0x60, 5, i32, i32, i32, i32, i32, 0}),
		section(secImport, imports...),
		section(secFunc, []byte{3, 2, 1, 1}),
		section(secMemory, []byte{1, 0x00, 1}),
		section(secExport, exports...),
		section(secCode, []byte{3},
			body(0x00, 0x20, 0x00, 0x0b),
			body(0x00, 0x0b),
			body(0x00, 0x20, 0x00, 0x41, 0x00, 0x36, 0x02, 0x00, 0x0b),
		),
	)
}

// Spin exports memory, spin(n) which loops n times, and ok() which returns 1.
func Spin() []byte {
	spin := []byte{
		0x00,
		0x03, 0x40, // loop
		0x20, 0x00, 0x41, 0x01, 0x6b, 0x22, 0x00, // n = n - 1
		0x0d, 0x00, // br_if n != 0
		0x0b,
		0x0b,
	}
	return module(
		section(secType, []byte{2, 0x60, 1, i32, 0, 0x60, 0, 1, i32}),
		section(secFunc, []byte{2, 0, 1}),
		section(secMemory, []byte{1, 0x00, 1}),
		section(secExport, []byte{3}, exportMemory(), exportFunc("spin", 0), exportFunc("ok", 1)),
		section(secCode, []byte{2}, body(spin...), body(0x00, 0x41, 0x01, 0x0b)),
	)
}
