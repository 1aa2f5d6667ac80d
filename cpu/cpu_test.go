package cpu_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mipsim/mips32/cpu"
)

func enc(t *testing.T, mnemonic string, rs, rt, rd, shamt, imm, target uint32) uint32 {
	t.Helper()
	spec := cpu.Lookup(mnemonic)
	require.NotNil(t, spec, "unknown mnemonic %q", mnemonic)
	return spec.Encode(rs, rt, rd, shamt, imm, target)
}

func segBytes(words []uint32) []byte {
	data := make([]byte, len(words)*4)
	for i, w := range words {
		data[i*4] = byte(w)
		data[i*4+1] = byte(w >> 8)
		data[i*4+2] = byte(w >> 16)
		data[i*4+3] = byte(w >> 24)
	}
	return data
}

func textImage(words ...uint32) *cpu.Image {
	return &cpu.Image{
		Segments: []cpu.Segment{
			{Kind: cpu.SegText, Base: cpu.TextBase, Data: segBytes(words)},
		},
		Entry: cpu.TextBase,
	}
}

func TestDecodeFields(t *testing.T) {
	// add $t0, $t1, $t2
	in, exc := cpu.Decode(0x012a4020, cpu.TextBase)
	require.Nil(t, exc)
	assert.Equal(t, "add", in.Spec.Mnemonic)
	assert.Equal(t, 9, in.Rs)
	assert.Equal(t, 10, in.Rt)
	assert.Equal(t, 8, in.Rd)

	// addi $t0, $t1, -4
	in, exc = cpu.Decode(0x2128fffc, cpu.TextBase)
	require.Nil(t, exc)
	assert.Equal(t, "addi", in.Spec.Mnemonic)
	assert.Equal(t, int32(-4), in.SImm)
	assert.Equal(t, uint32(0xfffc), in.Imm)
}

func TestDecodeReserved(t *testing.T) {
	_, exc := cpu.Decode(0xffffffff, cpu.TextBase)
	require.NotNil(t, exc)
	assert.Equal(t, cpu.ExcReserved, exc.Code)
}

func TestDecodeRoundTrip(t *testing.T) {
	words := []uint32{
		0x012a4020, // add $t0, $t1, $t2
		0x00094100, // sll $t0, $t1, 4
		0x8fa80004, // lw $t0, 4($sp)
		0x11090001, // beq $t0, $t1, +1
		0x08100000, // j 0x00400000
		0x0000000c, // syscall
		0x42000018, // eret
		0x40086000, // mfc0 $t0, $12
	}
	for _, w := range words {
		in, exc := cpu.Decode(w, cpu.TextBase)
		require.Nil(t, exc, "word %08x", w)
		got := in.Spec.Encode(uint32(in.Rs), uint32(in.Rt), uint32(in.Rd), in.Shamt, in.Imm, in.Target)
		assert.Equal(t, w, got, "round trip of %s", in.Spec.Mnemonic)
	}
}

func TestArithmeticAndFlags(t *testing.T) {
	img := textImage(
		enc(t, "addu", 9, 10, 8, 0, 0, 0), // addu $t0, $t1, $t2
		enc(t, "slt", 9, 10, 11, 0, 0, 0), // slt $t3, $t1, $t2
	)
	c := cpu.New(img, nil)
	c.Regs.Write(9, 0xffffffff) // -1
	c.Regs.Write(10, 2)

	c.Step()
	assert.Equal(t, uint32(1), c.Regs.Read(8))
	c.Step()
	assert.Equal(t, uint32(1), c.Regs.Read(11), "-1 < 2 signed")
	assert.Equal(t, cpu.Running, c.State())
}

func TestAddOverflowFaults(t *testing.T) {
	img := textImage(enc(t, "add", 9, 10, 8, 0, 0, 0))
	c := cpu.New(img, nil)
	c.Regs.Write(9, 0x7fffffff)
	c.Regs.Write(10, 1)

	res := c.Step()
	assert.Equal(t, cpu.Faulted, res.State)
	require.NotNil(t, c.Fault())
	assert.Equal(t, cpu.ExcOverflow, c.Fault().ExcCode)
	// Destination must be untouched.
	assert.Equal(t, uint32(0), c.Regs.Read(8))
}

func TestDivideByZeroFaults(t *testing.T) {
	img := textImage(enc(t, "div", 9, 10, 0, 0, 0, 0))
	c := cpu.New(img, nil)
	c.Regs.Write(9, 7)

	c.Step()
	assert.Equal(t, cpu.Faulted, c.State())
	assert.Equal(t, cpu.ExcDivideZero, c.Fault().ExcCode)
}

func TestZeroRegisterIgnoresWrites(t *testing.T) {
	img := textImage(enc(t, "addiu", 0, 0, 0, 0, 99, 0)) // addiu $zero, $zero, 99
	c := cpu.New(img, nil)
	c.Step()
	assert.Equal(t, uint32(0), c.Regs.Read(0))
}

func TestDelaySlotExecutesBeforeBranch(t *testing.T) {
	img := textImage(
		enc(t, "beq", 0, 0, 0, 0, 2, 0),    // branch to +2 words past the slot
		enc(t, "addiu", 0, 8, 0, 0, 7, 0),  // delay slot: $t0 = 7
		enc(t, "addiu", 0, 10, 0, 0, 1, 0), // skipped
		enc(t, "addiu", 0, 9, 0, 0, 9, 0),  // target: $t1 = 9
	)
	c := cpu.New(img, nil)

	res := c.Step()
	assert.Equal(t, uint32(cpu.TextBase+4), res.PC, "branch does not transfer before the slot")
	res = c.Step()
	assert.Equal(t, uint32(7), c.Regs.Read(8), "delay slot executed")
	assert.Equal(t, uint32(cpu.TextBase+12), res.PC, "branch commits after the slot")
	c.Step()
	assert.Equal(t, uint32(9), c.Regs.Read(9))
	assert.Equal(t, uint32(0), c.Regs.Read(10), "branched-over instruction skipped")
}

func TestJalLinksPastDelaySlot(t *testing.T) {
	target := uint32(cpu.TextBase+12) >> 2
	img := textImage(
		enc(t, "jal", 0, 0, 0, 0, 0, target),
		enc(t, "sll", 0, 0, 0, 0, 0, 0), // delay slot
		enc(t, "sll", 0, 0, 0, 0, 0, 0),
		enc(t, "jr", 31, 0, 0, 0, 0, 0),
	)
	c := cpu.New(img, nil)
	c.Step()
	assert.Equal(t, uint32(cpu.TextBase+8), c.Regs.Read(cpu.RegRA))
}

func TestUnalignedLoadFaults(t *testing.T) {
	img := textImage(enc(t, "lw", 29, 8, 0, 0, 1, 0)) // lw $t0, 1($sp)
	c := cpu.New(img, nil)

	c.Step()
	require.Equal(t, cpu.Faulted, c.State())
	assert.Equal(t, cpu.ExcAddressLoad, c.Fault().ExcCode)
	assert.Equal(t, uint32(cpu.StackPointer+1), c.Regs.ReadCP0(cpu.CP0BadVAddr))
}

func TestKernelAddressFromUserFaults(t *testing.T) {
	img := textImage(enc(t, "sw", 9, 8, 0, 0, 0, 0)) // sw $t0, 0($t1)
	c := cpu.New(img, nil)
	c.Regs.Write(9, cpu.KernelBase)
	c.Step()
	require.Equal(t, cpu.Faulted, c.State())
	assert.Equal(t, cpu.ExcAddressStore, c.Fault().ExcCode)
}

func TestFetchPastTextFaults(t *testing.T) {
	img := textImage(enc(t, "sll", 0, 0, 0, 0, 0, 0))
	c := cpu.New(img, nil)
	c.Step()
	res := c.Step()
	assert.Equal(t, cpu.Faulted, res.State)
	assert.Equal(t, cpu.ExcIBus, c.Fault().ExcCode)
}

func TestStepAfterTerminalIsNoOp(t *testing.T) {
	img := textImage(
		enc(t, "addiu", 0, 2, 0, 0, cpu.SysExit, 0),
		enc(t, "syscall", 0, 0, 0, 0, 0, 0),
	)
	c := cpu.New(img, nil)
	c.Step()
	c.Step()
	require.Equal(t, cpu.Halted, c.State())
	steps := c.Steps()

	res := c.Step()
	assert.Equal(t, cpu.Halted, res.State)
	assert.Equal(t, steps, c.Steps(), "terminal step must not execute")
}

func TestSyscallPrintAndExit(t *testing.T) {
	msg := "hi\x00"
	img := textImage(
		enc(t, "addiu", 0, 2, 0, 0, cpu.SysPrintString, 0),
		enc(t, "lui", 0, 4, 0, 0, cpu.DataBase>>16, 0),
		enc(t, "syscall", 0, 0, 0, 0, 0, 0),
		enc(t, "addiu", 0, 2, 0, 0, cpu.SysExit, 0),
		enc(t, "syscall", 0, 0, 0, 0, 0, 0),
	)
	img.Segments = append(img.Segments, cpu.Segment{
		Kind: cpu.SegData, Base: cpu.DataBase, Data: []byte(msg),
	})

	c := cpu.New(img, nil)
	var out strings.Builder
	for !c.State().Terminal() {
		out.WriteString(c.Step().Output)
	}
	assert.Equal(t, cpu.Halted, c.State())
	assert.Equal(t, 0, c.ExitCode())
	assert.Equal(t, "hi", out.String())
}

func TestSyscallReadInt(t *testing.T) {
	img := textImage(
		enc(t, "addiu", 0, 2, 0, 0, cpu.SysReadInt, 0),
		enc(t, "syscall", 0, 0, 0, 0, 0, 0),
	)
	c := cpu.New(img, strings.NewReader("-42\n"))
	c.Step()
	c.Step()
	assert.Equal(t, uint32(0xffffffd6), c.Regs.Read(cpu.RegV0))
}

func TestSyscallSbrk(t *testing.T) {
	img := textImage(
		enc(t, "addiu", 0, 2, 0, 0, cpu.SysSbrk, 0),
		enc(t, "addiu", 0, 4, 0, 0, 16, 0),
		enc(t, "syscall", 0, 0, 0, 0, 0, 0),
	)
	c := cpu.New(img, nil)
	c.Step()
	c.Step()
	c.Step()
	assert.Equal(t, uint32(cpu.HeapBase), c.Regs.Read(cpu.RegV0))
}

func TestSyscallSbrkHugeRequestFaults(t *testing.T) {
	// $a0 = -1 read as unsigned must not wrap the break past the heap.
	img := textImage(
		enc(t, "addiu", 0, 2, 0, 0, cpu.SysSbrk, 0),
		enc(t, "addiu", 0, 4, 0, 0, 0xffff, 0), // $a0 = -1
		enc(t, "syscall", 0, 0, 0, 0, 0, 0),
	)
	c := cpu.New(img, nil)
	c.Step()
	c.Step()
	c.Step()
	require.Equal(t, cpu.Faulted, c.State())
	assert.Equal(t, cpu.ExcAddressStore, c.Fault().ExcCode)
}

func TestSbrkStaysBelowStackRegion(t *testing.T) {
	m := cpu.NewMemory(textImage(0))
	base, exc := m.Sbrk(16)
	require.Nil(t, exc)
	assert.Equal(t, uint32(cpu.HeapBase), base)

	_, exc = m.Sbrk(cpu.StackHeapBound)
	require.NotNil(t, exc)
	assert.Equal(t, cpu.ExcAddressStore, exc.Code)
}

func TestReadStringFaultWritesNothing(t *testing.T) {
	// Buffer starts two bytes below kernel space; the third byte of the
	// write is unwritable, so none of them may land.
	img := textImage(
		enc(t, "addiu", 0, 2, 0, 0, cpu.SysReadString, 0),
		enc(t, "lui", 0, 4, 0, 0, 0x8000, 0),
		enc(t, "addiu", 4, 4, 0, 0, 0xfffe, 0), // $a0 = 0x7ffffffe
		enc(t, "addiu", 0, 5, 0, 0, 8, 0),      // $a1 = 8
		enc(t, "syscall", 0, 0, 0, 0, 0, 0),
	)
	c := cpu.New(img, strings.NewReader("abcdef\n"))
	for i := 0; i < 5; i++ {
		c.Step()
	}
	require.Equal(t, cpu.Faulted, c.State())
	assert.Equal(t, cpu.ExcAddressStore, c.Fault().ExcCode)

	v, exc := c.Mem.LoadByte(0x7ffffffe, true)
	require.Nil(t, exc)
	assert.Equal(t, uint32(0), v, "no partial write before the fault")
}

func TestExceptionDispatchToKernel(t *testing.T) {
	img := textImage(0xffffffff) // reserved instruction
	img.Segments = append(img.Segments, cpu.Segment{
		Kind: cpu.SegKText,
		Base: cpu.KTextBase,
		Data: segBytes([]uint32{
			enc(t, "eret", 0, 0, 0, 0, 0, 0),
		}),
	})

	c := cpu.New(img, nil)
	res := c.Step()
	require.Equal(t, cpu.Running, res.State, "handled exception keeps running")
	assert.Equal(t, uint32(cpu.ExceptionVector), res.PC)
	assert.Equal(t, uint32(cpu.TextBase), c.Regs.ReadCP0(cpu.CP0EPC))
	assert.Equal(t, cpu.ExcReserved, c.Regs.ExcCode())
	assert.NotZero(t, c.Regs.ReadCP0(cpu.CP0Status)&cpu.StatusEXL)

	res = c.Step() // eret
	assert.Equal(t, uint32(cpu.TextBase+4), res.PC, "resumes past the faulting instruction")
	assert.Zero(t, c.Regs.ReadCP0(cpu.CP0Status)&cpu.StatusEXL)
}

func TestFaultWithoutKernelText(t *testing.T) {
	img := textImage(0xffffffff)
	c := cpu.New(img, nil)
	res := c.Step()
	assert.Equal(t, cpu.Faulted, res.State)
	require.NotNil(t, c.Fault())
	assert.Equal(t, cpu.ExcReserved, c.Fault().ExcCode)
	assert.Equal(t, uint32(cpu.TextBase), c.Fault().EPC)
}

func TestRegisterNames(t *testing.T) {
	assert.Equal(t, "$sp", cpu.RegisterName(29))
	assert.Equal(t, 8, cpu.RegisterNumber("$t0"))
	assert.Equal(t, 8, cpu.RegisterNumber("$8"))
	assert.Equal(t, 30, cpu.RegisterNumber("$s8"))
	assert.Equal(t, -1, cpu.RegisterNumber("$bogus"))
}
