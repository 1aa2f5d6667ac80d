// Package sim drives assembled programs: it owns the CPU for one loaded
// image and layers session concerns on top of single stepping, namely
// breakpoints, run limits, cancellation, reset and state inspection.
package sim

import (
	"io"
	"log"
	"sync/atomic"

	"github.com/mipsim/mips32/cpu"
	"github.com/mipsim/mips32/translate"
)

var f = translate.From

// Options configures a session. Output receives console text as it is
// produced; a nil Output only buffers it in step results. Input feeds
// the read syscalls.
type Options struct {
	Output  io.Writer
	Input   io.Reader
	Verbose bool
}

// Session wraps one loaded program. Not safe for concurrent use except
// for Cancel, which may be called from another goroutine to interrupt
// a Run in progress.
type Session struct {
	opts   Options
	img    *cpu.Image
	core   *cpu.CPU
	breaks map[uint32]bool
	cancel atomic.Bool
}

// Load creates a session for an assembled image.
func Load(img *cpu.Image, opts Options) *Session {
	s := &Session{opts: opts, img: img, breaks: make(map[uint32]bool)}
	s.newCore()
	return s
}

func (s *Session) newCore() {
	s.core = cpu.New(s.img, s.opts.Input)
	s.core.Verbose = s.opts.Verbose
}

// Reset discards all execution state and reloads the image. Breakpoints
// survive a reset.
func (s *Session) Reset() {
	s.newCore()
	if s.opts.Verbose {
		log.Printf("session reset, entry 0x%08x", s.img.Entry)
	}
}

// SetBreakpoint arms a breakpoint at addr.
func (s *Session) SetBreakpoint(addr uint32) { s.breaks[addr] = true }

// ClearBreakpoint disarms the breakpoint at addr.
func (s *Session) ClearBreakpoint(addr uint32) { delete(s.breaks, addr) }

// Breakpoints returns the armed addresses.
func (s *Session) Breakpoints() []uint32 {
	var out []uint32
	for a := range s.breaks {
		out = append(out, a)
	}
	return out
}

// Cancel requests that an in-progress Run stop at the next instruction
// boundary. The session ends up Paused and can be resumed.
func (s *Session) Cancel() { s.cancel.Store(true) }

// State returns the execution state.
func (s *Session) State() cpu.State { return s.core.State() }

// ExitCode returns the exit syscall's code; valid once Halted.
func (s *Session) ExitCode() int { return s.core.ExitCode() }

// Fault returns the unhandled exception that stopped the run, or nil.
func (s *Session) Fault() *cpu.RuntimeFault { return s.core.Fault() }

// Step executes exactly one instruction and forwards any console
// output. Stepping a terminal session is a no-op.
func (s *Session) Step() cpu.StepResult {
	res := s.core.Step()
	s.sink(res.Output)
	return res
}

// Run executes until a terminal state, a breakpoint, cancellation, or
// maxSteps instructions (0 means no ceiling). Stopping early leaves the
// session Paused. A breakpoint on the resume address does not re-fire
// immediately, so Run after a breakpoint makes progress.
func (s *Session) Run(maxSteps uint64) cpu.StepResult {
	s.cancel.Store(false)
	res := cpu.StepResult{State: s.core.State(), PC: s.pc()}
	executed := uint64(0)
	first := true
	for !s.core.State().Terminal() {
		if !first && s.breaks[s.pc()] {
			s.core.Pause()
			if s.opts.Verbose {
				log.Printf("breakpoint at 0x%08x", s.pc())
			}
			return cpu.StepResult{State: s.core.State(), PC: s.pc()}
		}
		first = false
		if s.cancel.Load() || (maxSteps > 0 && executed >= maxSteps) {
			s.core.Pause()
			return cpu.StepResult{State: s.core.State(), PC: s.pc()}
		}
		res = s.Step()
		executed++
	}
	return res
}

func (s *Session) pc() uint32 { return s.core.Regs.PC }

func (s *Session) sink(out string) {
	if out != "" && s.opts.Output != nil {
		io.WriteString(s.opts.Output, out)
	}
}

// Snapshot is a point-in-time view of machine state for display.
type Snapshot struct {
	State     cpu.State
	PC        uint32
	HI, LO    uint32
	Registers map[string]uint32
	Cause     uint32
	EPC       uint32
	BadVAddr  uint32
	Status    uint32
	Steps     uint64
}

// Inspect captures the current machine state.
func (s *Session) Inspect() Snapshot {
	r := &s.core.Regs
	return Snapshot{
		State:     s.core.State(),
		PC:        r.PC,
		HI:        r.HI,
		LO:        r.LO,
		Registers: r.Dump(),
		Cause:     r.ReadCP0(cpu.CP0Cause),
		EPC:       r.ReadCP0(cpu.CP0EPC),
		BadVAddr:  r.ReadCP0(cpu.CP0BadVAddr),
		Status:    r.ReadCP0(cpu.CP0Status),
		Steps:     s.core.Steps(),
	}
}

// ReadWords returns n words of memory starting at addr, for memory
// displays. Unmapped addresses read as zero.
func (s *Session) ReadWords(addr uint32, n int) []uint32 {
	return s.core.Mem.Window(addr, n)
}

// LineFor maps an address to its source line, or zero.
func (s *Session) LineFor(addr uint32) int { return s.img.LineFor(addr) }

// Describe renders a one-line summary of the session outcome.
func (s *Session) Describe() string {
	switch s.core.State() {
	case cpu.Halted:
		return f("halted with exit code %d after %d steps", s.core.ExitCode(), s.core.Steps())
	case cpu.Faulted:
		return f("faulted: %v", s.core.Fault())
	}
	return f("%s at 0x%08x after %d steps", s.core.State(), s.pc(), s.core.Steps())
}
