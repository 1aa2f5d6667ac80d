package sim_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mipsim/mips32/assembler"
	"github.com/mipsim/mips32/cpu"
	"github.com/mipsim/mips32/sim"
)

func load(t *testing.T, src string, opts sim.Options) *sim.Session {
	t.Helper()
	img, err := assembler.New().Assemble(src)
	require.NoError(t, err)
	return sim.Load(img, opts)
}

const helloSrc = `
.data
msg:	.asciiz "hi"
.text
.globl main
main:	li $v0, 4
	la $a0, msg
	syscall
	li $v0, 10
	syscall
`

func TestRunHello(t *testing.T) {
	var out strings.Builder
	s := load(t, helloSrc, sim.Options{Output: &out})
	res := s.Run(0)
	assert.Equal(t, cpu.Halted, res.State)
	assert.Equal(t, 0, s.ExitCode())
	assert.Equal(t, "hi", out.String())
}

func TestExitCode(t *testing.T) {
	src := `
.text
.globl main
main:	li $a0, 3
	li $v0, 17
	syscall
`
	s := load(t, src, sim.Options{})
	s.Run(0)
	assert.Equal(t, cpu.Halted, s.State())
	assert.Equal(t, 3, s.ExitCode())
}

func TestReadIntEcho(t *testing.T) {
	src := `
.text
.globl main
main:	li $v0, 5
	syscall
	move $a0, $v0
	li $v0, 1
	syscall
	li $v0, 10
	syscall
`
	var out strings.Builder
	s := load(t, src, sim.Options{Output: &out, Input: strings.NewReader("123\n")})
	s.Run(0)
	assert.Equal(t, cpu.Halted, s.State())
	assert.Equal(t, "123", out.String())
}

func TestFaultReportsCauseAndEPC(t *testing.T) {
	// A divide by zero with no kernel handler must fault with the
	// exception cause and the faulting address captured.
	src := `
.text
.globl main
main:	li $t0, 1
	div $t0, $zero
`
	s := load(t, src, sim.Options{})
	res := s.Run(0)
	require.Equal(t, cpu.Faulted, res.State)
	fault := s.Fault()
	require.NotNil(t, fault)
	assert.Equal(t, cpu.ExcDivideZero, fault.ExcCode)
	assert.Equal(t, uint32(cpu.TextBase+4), fault.EPC)
	assert.Equal(t, 5, fault.Line)

	snap := s.Inspect()
	assert.Equal(t, uint32(cpu.TextBase+4), snap.EPC)
}

func TestKernelHandlerResumesExecution(t *testing.T) {
	// The handler skips the faulting instruction and the program runs
	// to a clean exit.
	src := `
.text
.globl main
main:	li $t0, 1
	div $t0, $zero
	li $v0, 10
	syscall
.ktext
handler: eret
`
	var out strings.Builder
	s := load(t, src, sim.Options{Output: &out})
	res := s.Run(0)
	assert.Equal(t, cpu.Halted, res.State)

	snap := s.Inspect()
	assert.Equal(t, cpu.ExcDivideZero, int(snap.Cause>>2&0x1f))
}

func TestStepAfterHaltIsNoOp(t *testing.T) {
	s := load(t, helloSrc, sim.Options{})
	s.Run(0)
	require.Equal(t, cpu.Halted, s.State())
	before := s.Inspect()

	res := s.Step()
	assert.Equal(t, cpu.Halted, res.State)
	assert.Equal(t, before.Steps, s.Inspect().Steps)
}

func TestBreakpointPausesAndResumes(t *testing.T) {
	var out strings.Builder
	s := load(t, helloSrc, sim.Options{Output: &out})
	// Break on the first syscall: li+la expand to three words before it.
	bp := uint32(cpu.TextBase + 12)
	s.SetBreakpoint(bp)

	res := s.Run(0)
	assert.Equal(t, cpu.Paused, res.State)
	assert.Equal(t, bp, res.PC)
	assert.Empty(t, out.String(), "nothing printed before the breakpoint")

	res = s.Run(0)
	assert.Equal(t, cpu.Halted, res.State, "resume does not re-trip the same breakpoint")
	assert.Equal(t, "hi", out.String())
}

func TestMaxStepsPauses(t *testing.T) {
	src := `
.text
.globl main
main:	b main
	nop
`
	s := load(t, src, sim.Options{})
	res := s.Run(100)
	assert.Equal(t, cpu.Paused, res.State)
	assert.Equal(t, uint64(100), s.Inspect().Steps)
}

func TestReadStringIntoBuffer(t *testing.T) {
	src := `
.data
buf:	.space 16
.text
.globl main
main:	li $v0, 8
	la $a0, buf
	li $a1, 8
	syscall
	li $v0, 4
	la $a0, buf
	syscall
	li $v0, 10
	syscall
`
	var out strings.Builder
	s := load(t, src, sim.Options{Output: &out, Input: strings.NewReader("hello world\n")})
	s.Run(0)
	assert.Equal(t, cpu.Halted, s.State())
	assert.Equal(t, "hello w", out.String(), "capped at max-1 bytes plus terminator")
}

func TestReadCharEcho(t *testing.T) {
	src := `
.text
.globl main
main:	li $v0, 12
	syscall
	move $a0, $v0
	li $v0, 11
	syscall
	li $v0, 10
	syscall
`
	var out strings.Builder
	s := load(t, src, sim.Options{Output: &out, Input: strings.NewReader("Z")})
	s.Run(0)
	assert.Equal(t, cpu.Halted, s.State())
	assert.Equal(t, "Z", out.String())
}

func TestCancelPausesRun(t *testing.T) {
	src := `
.text
.globl main
main:	b main
	nop
`
	s := load(t, src, sim.Options{})
	go func() {
		time.Sleep(5 * time.Millisecond)
		s.Cancel()
	}()
	res := s.Run(0)
	assert.Equal(t, cpu.Paused, res.State)

	// The stop lands on an instruction boundary inside the loop and the
	// session stays resumable.
	snap := s.Inspect()
	assert.Zero(t, snap.PC%4)
	assert.True(t, snap.PC == uint32(cpu.TextBase) || snap.PC == uint32(cpu.TextBase+4))

	res = s.Run(10)
	assert.Equal(t, cpu.Paused, res.State)
	assert.Equal(t, snap.Steps+10, s.Inspect().Steps, "resume executes whole steps")
}

func TestReset(t *testing.T) {
	s := load(t, helloSrc, sim.Options{})
	s.Run(0)
	require.Equal(t, cpu.Halted, s.State())

	s.Reset()
	assert.Equal(t, cpu.Ready, s.State())
	snap := s.Inspect()
	assert.Equal(t, uint32(cpu.TextBase), snap.PC)
	assert.Equal(t, uint64(0), snap.Steps)

	res := s.Run(0)
	assert.Equal(t, cpu.Halted, res.State, "program reruns after reset")
}

func TestInspectRegistersAndMemory(t *testing.T) {
	src := `
.data
vals:	.word 17, 34
.text
.globl main
main:	li $t0, 55
	li $v0, 10
	syscall
`
	s := load(t, src, sim.Options{})
	s.Run(0)

	snap := s.Inspect()
	assert.Equal(t, uint32(55), snap.Registers["$t0"])
	assert.Equal(t, uint32(cpu.StackPointer), snap.Registers["$sp"])

	words := s.ReadWords(cpu.DataBase, 2)
	assert.Equal(t, []uint32{17, 34}, words)
}

func TestDescribe(t *testing.T) {
	s := load(t, helloSrc, sim.Options{})
	s.Run(0)
	assert.Contains(t, s.Describe(), "exit code 0")
}
