package cpu

// MIPS32 memory layout. These bases are part of the contract with
// assembly source: user text and data live in the low half, kernel
// segments in the high half, and the exception vector is hard-wired.
const (
	TextBase        = 0x00400000
	ExternBase      = 0x10000000
	GlobalPointer   = 0x10008000
	DataBase        = 0x10010000
	HeapBase        = 0x10040000
	StackPointer    = 0x7FFFEFFC
	StackHeapBound  = 0x40000000
	KernelBase      = 0x80000000
	ExceptionVector = 0x80000180
	KTextBase       = ExceptionVector
	KDataBase       = 0x90000000
	MMIOBase        = 0xFFFF0000
)

// SegmentKind identifies one of the fixed program segments.
type SegmentKind int

const (
	SegText SegmentKind = iota
	SegData
	SegKText
	SegKData
	SegExtern
)

func (k SegmentKind) String() string {
	switch k {
	case SegText:
		return ".text"
	case SegData:
		return ".data"
	case SegKText:
		return ".ktext"
	case SegKData:
		return ".kdata"
	case SegExtern:
		return ".extern"
	}
	return "?"
}

// Base returns the fixed base address for a segment kind.
func (k SegmentKind) Base() uint32 {
	switch k {
	case SegText:
		return TextBase
	case SegData:
		return DataBase
	case SegKText:
		return KTextBase
	case SegKData:
		return KDataBase
	case SegExtern:
		return ExternBase
	}
	return 0
}

// Segment is an assembled, immutable region of the address space.
type Segment struct {
	Kind SegmentKind
	Base uint32
	Data []byte
}

// End returns the first address past the segment contents.
func (s *Segment) End() uint32 {
	return s.Base + uint32(len(s.Data))
}

// Image is the assembled program: all segments, the entry point and the
// address-to-source-line map used for diagnostics. An Image is immutable;
// loading it into a Memory copies the contents.
type Image struct {
	Segments []Segment
	Entry    uint32
	Lines    map[uint32]int
}

// HasKernelText reports whether the image provides an exception handler
// at the exception vector.
func (img *Image) HasKernelText() bool {
	for _, s := range img.Segments {
		if s.Kind == SegKText && len(s.Data) > 0 {
			return true
		}
	}
	return false
}

// LineFor maps an instruction address to its source line, 0 if unknown.
func (img *Image) LineFor(addr uint32) int {
	return img.Lines[addr]
}

const (
	pageShift = 12
	pageSize  = 1 << pageShift
)

type extent struct{ lo, hi uint32 }

// Memory is the runtime address space: a sparse set of 4KB pages
// initialised from an Image. Reads of untouched memory return zero.
// Words are stored little-endian.
type Memory struct {
	pages map[uint32][]byte
	exec  []extent
	image *Image
	brk   uint32
}

// NewMemory builds a runtime memory from an assembled image.
func NewMemory(img *Image) *Memory {
	m := &Memory{
		pages: make(map[uint32][]byte),
		image: img,
		brk:   HeapBase,
	}
	for _, s := range img.Segments {
		for i, b := range s.Data {
			m.poke(s.Base+uint32(i), b)
		}
		if s.Kind == SegText || s.Kind == SegKText {
			m.exec = append(m.exec, extent{s.Base, s.End()})
		}
	}
	return m
}

// Image returns the image this memory was loaded from.
func (m *Memory) Image() *Image { return m.image }

func (m *Memory) page(addr uint32, create bool) []byte {
	pn := addr >> pageShift
	p, ok := m.pages[pn]
	if !ok && create {
		p = make([]byte, pageSize)
		m.pages[pn] = p
	}
	return p
}

func (m *Memory) peek(addr uint32) byte {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	return p[addr&(pageSize-1)]
}

func (m *Memory) poke(addr uint32, b byte) {
	m.page(addr, true)[addr&(pageSize-1)] = b
}

func kernelSpace(addr uint32) bool {
	return addr >= KernelBase
}

// LoadByte reads one byte. Kernel addresses fault outside kernel context.
func (m *Memory) LoadByte(addr uint32, kernel bool) (uint32, *Exception) {
	if kernelSpace(addr) && !kernel {
		return 0, addrErr(ExcAddressLoad, addr)
	}
	return uint32(m.peek(addr)), nil
}

// LoadHalf reads a halfword; addr must be 2-byte aligned.
func (m *Memory) LoadHalf(addr uint32, kernel bool) (uint32, *Exception) {
	if addr%2 != 0 || (kernelSpace(addr) && !kernel) {
		return 0, addrErr(ExcAddressLoad, addr)
	}
	return uint32(m.peek(addr)) | uint32(m.peek(addr+1))<<8, nil
}

// LoadWord reads a word; addr must be 4-byte aligned.
func (m *Memory) LoadWord(addr uint32, kernel bool) (uint32, *Exception) {
	if addr%4 != 0 || (kernelSpace(addr) && !kernel) {
		return 0, addrErr(ExcAddressLoad, addr)
	}
	return m.word(addr), nil
}

func (m *Memory) word(addr uint32) uint32 {
	return uint32(m.peek(addr)) | uint32(m.peek(addr+1))<<8 |
		uint32(m.peek(addr+2))<<16 | uint32(m.peek(addr+3))<<24
}

// StoreByte writes one byte.
func (m *Memory) StoreByte(addr uint32, v uint32, kernel bool) *Exception {
	if kernelSpace(addr) && !kernel {
		return addrErr(ExcAddressStore, addr)
	}
	m.poke(addr, byte(v))
	return nil
}

// StoreBytes writes b starting at addr, all or nothing: the whole range
// is validated before the first byte lands.
func (m *Memory) StoreBytes(addr uint32, b []byte, kernel bool) *Exception {
	if !kernel {
		for i := range b {
			if kernelSpace(addr + uint32(i)) {
				return addrErr(ExcAddressStore, addr+uint32(i))
			}
		}
	}
	for i, v := range b {
		m.poke(addr+uint32(i), v)
	}
	return nil
}

// StoreHalf writes a halfword; addr must be 2-byte aligned.
func (m *Memory) StoreHalf(addr uint32, v uint32, kernel bool) *Exception {
	if addr%2 != 0 || (kernelSpace(addr) && !kernel) {
		return addrErr(ExcAddressStore, addr)
	}
	m.poke(addr, byte(v))
	m.poke(addr+1, byte(v>>8))
	return nil
}

// StoreWord writes a word; addr must be 4-byte aligned.
func (m *Memory) StoreWord(addr uint32, v uint32, kernel bool) *Exception {
	if addr%4 != 0 || (kernelSpace(addr) && !kernel) {
		return addrErr(ExcAddressStore, addr)
	}
	m.poke(addr, byte(v))
	m.poke(addr+1, byte(v>>8))
	m.poke(addr+2, byte(v>>16))
	m.poke(addr+3, byte(v>>24))
	return nil
}

// FetchWord reads an instruction word. Fetching outside the loaded text
// segments is a bus error; this is how a program that runs off the end
// of its code is caught.
func (m *Memory) FetchWord(addr uint32) (uint32, *Exception) {
	if addr%4 != 0 {
		return 0, addrErr(ExcAddressLoad, addr)
	}
	for _, e := range m.exec {
		if addr >= e.lo && addr < e.hi {
			return m.word(addr), nil
		}
	}
	return 0, addrErr(ExcIBus, addr)
}

// Sbrk extends the heap by n bytes and returns the base of the new block.
// The break is kept word-aligned and never leaves the heap region, even
// for requests large enough to wrap 32-bit arithmetic.
func (m *Memory) Sbrk(n uint32) (uint32, *Exception) {
	avail := StackHeapBound - m.brk
	if n > avail {
		return 0, addrErr(ExcAddressStore, m.brk)
	}
	base := m.brk
	n = (n + 3) &^ 3
	if n > avail {
		n = avail
	}
	m.brk += n
	return base, nil
}

// Window copies n words starting at addr for state inspection. No faults:
// unmapped memory reads as zero.
func (m *Memory) Window(addr uint32, n int) []uint32 {
	addr &^= 3
	out := make([]uint32, n)
	for i := range out {
		out[i] = m.word(addr + uint32(i)*4)
	}
	return out
}
