package cpu

import (
	"github.com/mipsim/mips32/translate"
)

var f = translate.From

// MIPS32 exception codes, as stored in bits [6:2] of the Cause register.
const (
	ExcInterrupt    = 0  // external interrupt
	ExcAddressLoad  = 4  // load from an illegal or misaligned address
	ExcAddressStore = 5  // store to an illegal or misaligned address
	ExcIBus         = 6  // bus error on instruction fetch
	ExcDBus         = 7  // bus error on data reference
	ExcSyscall      = 8  // syscall instruction executed
	ExcBreakpoint   = 9  // break instruction executed
	ExcReserved     = 10 // reserved instruction
	ExcOverflow     = 12 // arithmetic overflow
	ExcTrap         = 13 // trap condition true
	ExcDivideZero   = 15 // division by zero
)

// excMessages maps every exception code the simulator can raise to its
// diagnostic text.
var excMessages = map[int]string{
	ExcInterrupt:    "interrupt",
	ExcAddressLoad:  "address error on load",
	ExcAddressStore: "address error on store",
	ExcIBus:         "bus error on instruction fetch",
	ExcDBus:         "bus error on data reference",
	ExcSyscall:      "syscall exception",
	ExcBreakpoint:   "breakpoint",
	ExcReserved:     "reserved instruction",
	ExcOverflow:     "arithmetic overflow",
	ExcTrap:         "trap",
	ExcDivideZero:   "division by zero",
}

// ExcName returns the diagnostic text for an exception code.
func ExcName(code int) string {
	if msg, ok := excMessages[code]; ok {
		return msg
	}
	return f("unknown exception %d", code)
}

// Exception is a trapping condition raised during instruction execution.
// It is dispatched through the coprocessor-0 mechanism, not returned to
// the caller, unless no kernel handler is present.
type Exception struct {
	Code     int
	BadVAddr uint32 // valid for ExcAddressLoad/ExcAddressStore
	HasVAddr bool
}

func (e *Exception) Error() string {
	if e.HasVAddr {
		return f("%s at address 0x%08x", ExcName(e.Code), e.BadVAddr)
	}
	return ExcName(e.Code)
}

func excErr(code int) *Exception {
	return &Exception{Code: code}
}

func addrErr(code int, addr uint32) *Exception {
	return &Exception{Code: code, BadVAddr: addr, HasVAddr: true}
}

// RuntimeFault is returned when an exception cannot be delivered to a
// kernel handler and the CPU transitions to Faulted.
type RuntimeFault struct {
	ExcCode int
	EPC     uint32
	Line    int // source line of the faulting instruction, 0 if unknown
}

func (e *RuntimeFault) Error() string {
	if e.Line > 0 {
		return f("runtime fault: %s (epc=0x%08x, line %d)", ExcName(e.ExcCode), e.EPC, e.Line)
	}
	return f("runtime fault: %s (epc=0x%08x)", ExcName(e.ExcCode), e.EPC)
}
