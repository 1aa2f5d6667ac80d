package cpu

// General-purpose register numbers with architectural roles.
const (
	RegZero = 0  // hard-wired zero
	RegAT   = 1  // assembler temporary
	RegV0   = 2  // syscall service code / result
	RegV1   = 3
	RegA0   = 4 // syscall/procedure arguments
	RegA1   = 5
	RegA2   = 6
	RegA3   = 7
	RegK0   = 26 // reserved for kernel use
	RegK1   = 27
	RegGP   = 28
	RegSP   = 29
	RegFP   = 30
	RegRA   = 31
)

// Coprocessor-0 register numbers.
const (
	CP0BadVAddr = 8
	CP0Status   = 12
	CP0Cause    = 13
	CP0EPC      = 14
)

// Status register bits.
const (
	StatusIE  = 1 << 0 // interrupt enable
	StatusEXL = 1 << 1 // exception level (kernel context)
)

// regNames maps register numbers to their conventional names, in order.
var regNames = [32]string{
	"$zero", "$at", "$v0", "$v1", "$a0", "$a1", "$a2", "$a3",
	"$t0", "$t1", "$t2", "$t3", "$t4", "$t5", "$t6", "$t7",
	"$s0", "$s1", "$s2", "$s3", "$s4", "$s5", "$s6", "$s7",
	"$t8", "$t9", "$k0", "$k1", "$gp", "$sp", "$fp", "$ra",
}

var regNumbers = map[string]int{}

func init() {
	for i, name := range regNames {
		regNumbers[name] = i
	}
	// $fp doubles as $s8 in some sources.
	regNumbers["$s8"] = RegFP
}

// RegisterName returns the conventional name for a register number.
func RegisterName(n int) string {
	if n < 0 || n > 31 {
		return "$?"
	}
	return regNames[n]
}

// RegisterNumber resolves a register name to its number. Both aliases
// ($t0) and numeric names ($8) are accepted. Returns -1 if the name is
// not a register.
func RegisterNumber(name string) int {
	if n, ok := regNumbers[name]; ok {
		return n
	}
	if len(name) >= 2 && len(name) <= 3 && name[0] == '$' {
		n := 0
		for _, c := range name[1:] {
			if c < '0' || c > '9' {
				return -1
			}
			n = n*10 + int(c-'0')
		}
		if n <= 31 {
			return n
		}
	}
	return -1
}

// Registers is the MIPS32 general-purpose register file plus the
// multiply/divide pair and coprocessor 0.
type Registers struct {
	gpr [32]uint32
	PC  uint32
	HI  uint32
	LO  uint32

	cp0 [32]uint32
}

// Read returns the value of a general-purpose register.
func (r *Registers) Read(n int) uint32 {
	return r.gpr[n&31]
}

// ReadSigned returns the value of a register as a signed integer.
func (r *Registers) ReadSigned(n int) int32 {
	return int32(r.gpr[n&31])
}

// Write stores a value into a general-purpose register. Writes to $zero
// are discarded.
func (r *Registers) Write(n int, v uint32) {
	if n&31 == RegZero {
		return
	}
	r.gpr[n&31] = v
}

// ReadCP0 returns a coprocessor-0 register value.
func (r *Registers) ReadCP0(n int) uint32 {
	return r.cp0[n&31]
}

// WriteCP0 stores a value into a coprocessor-0 register.
func (r *Registers) WriteCP0(n int, v uint32) {
	r.cp0[n&31] = v
}

// ExcCode extracts the exception code from the Cause register.
func (r *Registers) ExcCode() int {
	return int(r.cp0[CP0Cause] >> 2 & 0x1f)
}

// setExcCode writes code into bits [6:2] of Cause.
func (r *Registers) setExcCode(code int) {
	cause := r.cp0[CP0Cause] &^ (uint32(0x1f) << 2)
	r.cp0[CP0Cause] = cause | uint32(code&0x1f)<<2
}

// InKernel reports whether the CPU is executing at exception level.
func (r *Registers) InKernel() bool {
	return r.cp0[CP0Status]&StatusEXL != 0
}

// Dump returns all general-purpose registers keyed by name.
func (r *Registers) Dump() map[string]uint32 {
	m := make(map[string]uint32, 32)
	for i, name := range regNames {
		m[name] = r.gpr[i]
	}
	return m
}
