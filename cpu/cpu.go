package cpu

import (
	"bufio"
	"bytes"
	"io"
	"log"
)

// State is the execution state of a CPU.
type State int

const (
	// Ready means an image is loaded but nothing has executed yet.
	Ready State = iota
	// Running means execution is in progress.
	Running
	// Paused means execution stopped at a breakpoint, step ceiling or
	// cancellation and can be resumed.
	Paused
	// Halted is terminal: the program executed an exit syscall.
	Halted
	// Faulted is terminal: an exception had no kernel handler.
	Faulted
)

func (s State) String() string {
	switch s {
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Paused:
		return "PAUSED"
	case Halted:
		return "HALTED"
	case Faulted:
		return "FAULTED"
	}
	return "?"
}

// Terminal reports whether no further steps can execute.
func (s State) Terminal() bool {
	return s == Halted || s == Faulted
}

// CPU is a MIPS32 core bound to one memory image. All mutation goes
// through Step; a step is all-or-nothing.
type CPU struct {
	Regs Registers
	Mem  *Memory

	// Verbose enables per-step execution logging.
	Verbose bool

	state    State
	exitCode int
	fault    *RuntimeFault
	steps    uint64

	// Delay slot bookkeeping: a taken branch latches the target here
	// and the next instruction commits it.
	branchPending bool
	branchTarget  uint32

	// Direct PC redirect, used by eret.
	redirect   bool
	redirectTo uint32

	out bytes.Buffer
	in  *bufio.Reader
}

// New creates a CPU with a fresh memory loaded from img. Reads performed
// by input syscalls come from input; a nil input reads as EOF.
func New(img *Image, input io.Reader) *CPU {
	c := &CPU{Mem: NewMemory(img)}
	if input == nil {
		input = bytes.NewReader(nil)
	}
	c.in = bufio.NewReader(input)
	c.Regs.PC = img.Entry
	c.Regs.Write(RegSP, StackPointer)
	c.Regs.Write(RegGP, GlobalPointer)
	return c
}

// State returns the current execution state.
func (c *CPU) State() State { return c.state }

// ExitCode returns the code passed to the exit syscall. Valid once the
// state is Halted.
func (c *CPU) ExitCode() int { return c.exitCode }

// Fault returns the unhandled exception that stopped the CPU, or nil.
func (c *CPU) Fault() *RuntimeFault { return c.fault }

// Steps returns the number of instructions executed.
func (c *CPU) Steps() uint64 { return c.steps }

// Pause moves a runnable CPU to the Paused state.
func (c *CPU) Pause() {
	if !c.state.Terminal() {
		c.state = Paused
	}
}

// StepResult is the outcome of a single fetch-decode-execute cycle.
type StepResult struct {
	State  State
	PC     uint32
	Output string // console output produced by this step
}

// Step executes one instruction: fetch at PC, decode, execute, advance.
// The instruction after a taken branch or jump (the delay slot) executes
// before control transfers. On a terminal state Step is a no-op that
// reports the same state.
func (c *CPU) Step() StepResult {
	if c.state.Terminal() {
		return StepResult{State: c.state, PC: c.Regs.PC}
	}
	c.state = Running

	addr := c.Regs.PC
	word, exc := c.Mem.FetchWord(addr)
	if exc != nil {
		return c.raise(exc, addr)
	}
	in, exc := Decode(word, addr)
	if exc != nil {
		return c.raise(exc, addr)
	}

	if c.Verbose {
		log.Printf("step pc=%08x %s", addr, in.Spec.Mnemonic)
	}

	commit, target := c.branchPending, c.branchTarget
	c.branchPending = false
	c.redirect = false

	if err := in.Spec.Exec(c, in); err != nil {
		if exc, ok := err.(*Exception); ok {
			return c.raise(exc, addr)
		}
		// Non-architectural failure (bad console input); fault as a
		// bus error so the run stops with a diagnostic.
		return c.raise(addrErr(ExcDBus, addr), addr)
	}
	c.steps++

	switch {
	case c.state.Terminal():
		// exit syscall; PC no longer meaningful.
	case c.redirect:
		c.Regs.PC = c.redirectTo
	case commit:
		c.Regs.PC = target
	default:
		c.Regs.PC = addr + 4
	}

	return StepResult{State: c.state, PC: c.Regs.PC, Output: c.drain()}
}

// raise performs exception entry: EPC, Cause and BadVAddr are written,
// then control transfers to the fixed exception vector if the image has
// kernel text and the CPU is not already at exception level. Otherwise
// the CPU faults.
func (c *CPU) raise(exc *Exception, addr uint32) StepResult {
	c.Regs.WriteCP0(CP0EPC, addr)
	c.Regs.setExcCode(exc.Code)
	if exc.HasVAddr {
		c.Regs.WriteCP0(CP0BadVAddr, exc.BadVAddr)
	}
	c.branchPending = false

	if c.Regs.InKernel() || !c.Mem.Image().HasKernelText() {
		c.state = Faulted
		c.fault = &RuntimeFault{
			ExcCode: exc.Code,
			EPC:     addr,
			Line:    c.Mem.Image().LineFor(addr),
		}
		if c.Verbose {
			log.Printf("fault: %v", c.fault)
		}
		return StepResult{State: c.state, PC: c.Regs.PC, Output: c.drain()}
	}

	c.Regs.WriteCP0(CP0Status, c.Regs.ReadCP0(CP0Status)|StatusEXL)
	c.Regs.PC = ExceptionVector
	if c.Verbose {
		log.Printf("exception %d -> vector %08x", exc.Code, ExceptionVector)
	}
	return StepResult{State: c.state, PC: c.Regs.PC, Output: c.drain()}
}

// branch latches a taken branch target; it commits after the delay slot.
func (c *CPU) branch(target uint32) {
	c.branchPending = true
	c.branchTarget = target
}

func (c *CPU) halt(code int) {
	c.state = Halted
	c.exitCode = code
}

func (c *CPU) print(s string) {
	c.out.WriteString(s)
}

func (c *CPU) drain() string {
	s := c.out.String()
	c.out.Reset()
	return s
}
