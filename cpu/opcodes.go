package cpu

// Format is the MIPS32 encoding class of an instruction.
type Format int

const (
	FormatR Format = iota
	FormatI
	FormatJ
)

// Syntax describes the assembly operand shape of an instruction. The
// assembler uses it to parse and pack operands, the disassembler to
// print them back.
type Syntax int

const (
	SynNone     Syntax = iota // syscall
	Syn3R                     // add rd, rs, rt
	SynShift                  // sll rd, rt, shamt
	SynShiftVar               // sllv rd, rt, rs
	SynRs                     // jr rs
	SynRd                     // mfhi rd
	SynRsRt                   // mult rs, rt
	SynArithImm               // addi rt, rs, imm (signed)
	SynLogicImm               // andi rt, rs, imm (unsigned)
	SynLui                    // lui rt, imm
	SynBranch                 // beq rs, rt, label
	SynBranchZ                // bltz rs, label
	SynMem                    // lw rt, offset(base)
	SynJump                   // j target
	SynCop0                   // mfc0 rt, cp0reg
)

// InstrSpec is one row of the ISA table: encoding fields, operand shape
// and the execution handler. A single table drives the assembler, the
// decoder and the disassembler so the three can never disagree.
type InstrSpec struct {
	Mnemonic string
	Format   Format
	Syntax   Syntax
	Opcode   uint32 // bits 31:26
	Funct    uint32 // bits 5:0, R-format only
	FixedRt  uint32 // rt discriminator for REGIMM branches
	FixedRs  uint32 // rs discriminator for coprocessor-0 ops
	Exec     func(*CPU, *Decoded) error
}

// Encode packs operand fields into a 32-bit instruction word.
func (s *InstrSpec) Encode(rs, rt, rd, shamt, imm, target uint32) uint32 {
	switch s.Format {
	case FormatR:
		if s.Opcode == opCop0 {
			rs = s.FixedRs
		}
		return s.Opcode<<26 | (rs&31)<<21 | (rt&31)<<16 | (rd&31)<<11 | (shamt&31)<<6 | s.Funct
	case FormatI:
		if s.Opcode == opRegimm {
			rt = s.FixedRt
		}
		return s.Opcode<<26 | (rs&31)<<21 | (rt&31)<<16 | imm&0xffff
	default:
		return s.Opcode<<26 | target&0x3ffffff
	}
}

const (
	opSpecial = 0x00
	opRegimm  = 0x01
	opCop0    = 0x10
)

// Instructions is the MIPS32 subset, keyed by mnemonic.
var Instructions = map[string]*InstrSpec{}

// Decode lookup tables, built from the spec list at init.
var (
	functTable  [64]*InstrSpec
	opcodeTable [64]*InstrSpec
	regimmTable [32]*InstrSpec
	cop0Moves   [32]*InstrSpec
	cop0Functs  [64]*InstrSpec
)

var specs = []*InstrSpec{
	// R-format, SPECIAL opcode.
	{Mnemonic: "sll", Format: FormatR, Syntax: SynShift, Funct: 0x00, Exec: execSll},
	{Mnemonic: "srl", Format: FormatR, Syntax: SynShift, Funct: 0x02, Exec: execSrl},
	{Mnemonic: "sra", Format: FormatR, Syntax: SynShift, Funct: 0x03, Exec: execSra},
	{Mnemonic: "sllv", Format: FormatR, Syntax: SynShiftVar, Funct: 0x04, Exec: execSllv},
	{Mnemonic: "srlv", Format: FormatR, Syntax: SynShiftVar, Funct: 0x06, Exec: execSrlv},
	{Mnemonic: "srav", Format: FormatR, Syntax: SynShiftVar, Funct: 0x07, Exec: execSrav},
	{Mnemonic: "jr", Format: FormatR, Syntax: SynRs, Funct: 0x08, Exec: execJr},
	{Mnemonic: "jalr", Format: FormatR, Syntax: SynRs, Funct: 0x09, Exec: execJalr},
	{Mnemonic: "syscall", Format: FormatR, Syntax: SynNone, Funct: 0x0c, Exec: execSyscall},
	{Mnemonic: "break", Format: FormatR, Syntax: SynNone, Funct: 0x0d, Exec: execBreak},
	{Mnemonic: "mfhi", Format: FormatR, Syntax: SynRd, Funct: 0x10, Exec: execMfhi},
	{Mnemonic: "mthi", Format: FormatR, Syntax: SynRs, Funct: 0x11, Exec: execMthi},
	{Mnemonic: "mflo", Format: FormatR, Syntax: SynRd, Funct: 0x12, Exec: execMflo},
	{Mnemonic: "mtlo", Format: FormatR, Syntax: SynRs, Funct: 0x13, Exec: execMtlo},
	{Mnemonic: "mult", Format: FormatR, Syntax: SynRsRt, Funct: 0x18, Exec: execMult},
	{Mnemonic: "multu", Format: FormatR, Syntax: SynRsRt, Funct: 0x19, Exec: execMultu},
	{Mnemonic: "div", Format: FormatR, Syntax: SynRsRt, Funct: 0x1a, Exec: execDiv},
	{Mnemonic: "divu", Format: FormatR, Syntax: SynRsRt, Funct: 0x1b, Exec: execDivu},
	{Mnemonic: "add", Format: FormatR, Syntax: Syn3R, Funct: 0x20, Exec: execAdd},
	{Mnemonic: "addu", Format: FormatR, Syntax: Syn3R, Funct: 0x21, Exec: execAddu},
	{Mnemonic: "sub", Format: FormatR, Syntax: Syn3R, Funct: 0x22, Exec: execSub},
	{Mnemonic: "subu", Format: FormatR, Syntax: Syn3R, Funct: 0x23, Exec: execSubu},
	{Mnemonic: "and", Format: FormatR, Syntax: Syn3R, Funct: 0x24, Exec: execAnd},
	{Mnemonic: "or", Format: FormatR, Syntax: Syn3R, Funct: 0x25, Exec: execOr},
	{Mnemonic: "xor", Format: FormatR, Syntax: Syn3R, Funct: 0x26, Exec: execXor},
	{Mnemonic: "nor", Format: FormatR, Syntax: Syn3R, Funct: 0x27, Exec: execNor},
	{Mnemonic: "slt", Format: FormatR, Syntax: Syn3R, Funct: 0x2a, Exec: execSlt},
	{Mnemonic: "sltu", Format: FormatR, Syntax: Syn3R, Funct: 0x2b, Exec: execSltu},

	// REGIMM branches, discriminated by the rt field.
	{Mnemonic: "bltz", Format: FormatI, Syntax: SynBranchZ, Opcode: opRegimm, FixedRt: 0x00, Exec: execBltz},
	{Mnemonic: "bgez", Format: FormatI, Syntax: SynBranchZ, Opcode: opRegimm, FixedRt: 0x01, Exec: execBgez},

	// I-format.
	{Mnemonic: "beq", Format: FormatI, Syntax: SynBranch, Opcode: 0x04, Exec: execBeq},
	{Mnemonic: "bne", Format: FormatI, Syntax: SynBranch, Opcode: 0x05, Exec: execBne},
	{Mnemonic: "blez", Format: FormatI, Syntax: SynBranchZ, Opcode: 0x06, Exec: execBlez},
	{Mnemonic: "bgtz", Format: FormatI, Syntax: SynBranchZ, Opcode: 0x07, Exec: execBgtz},
	{Mnemonic: "addi", Format: FormatI, Syntax: SynArithImm, Opcode: 0x08, Exec: execAddi},
	{Mnemonic: "addiu", Format: FormatI, Syntax: SynArithImm, Opcode: 0x09, Exec: execAddiu},
	{Mnemonic: "slti", Format: FormatI, Syntax: SynArithImm, Opcode: 0x0a, Exec: execSlti},
	{Mnemonic: "sltiu", Format: FormatI, Syntax: SynArithImm, Opcode: 0x0b, Exec: execSltiu},
	{Mnemonic: "andi", Format: FormatI, Syntax: SynLogicImm, Opcode: 0x0c, Exec: execAndi},
	{Mnemonic: "ori", Format: FormatI, Syntax: SynLogicImm, Opcode: 0x0d, Exec: execOri},
	{Mnemonic: "xori", Format: FormatI, Syntax: SynLogicImm, Opcode: 0x0e, Exec: execXori},
	{Mnemonic: "lui", Format: FormatI, Syntax: SynLui, Opcode: 0x0f, Exec: execLui},
	{Mnemonic: "lb", Format: FormatI, Syntax: SynMem, Opcode: 0x20, Exec: execLb},
	{Mnemonic: "lh", Format: FormatI, Syntax: SynMem, Opcode: 0x21, Exec: execLh},
	{Mnemonic: "lw", Format: FormatI, Syntax: SynMem, Opcode: 0x23, Exec: execLw},
	{Mnemonic: "lbu", Format: FormatI, Syntax: SynMem, Opcode: 0x24, Exec: execLbu},
	{Mnemonic: "lhu", Format: FormatI, Syntax: SynMem, Opcode: 0x25, Exec: execLhu},
	{Mnemonic: "sb", Format: FormatI, Syntax: SynMem, Opcode: 0x28, Exec: execSb},
	{Mnemonic: "sh", Format: FormatI, Syntax: SynMem, Opcode: 0x29, Exec: execSh},
	{Mnemonic: "sw", Format: FormatI, Syntax: SynMem, Opcode: 0x2b, Exec: execSw},

	// J-format.
	{Mnemonic: "j", Format: FormatJ, Syntax: SynJump, Opcode: 0x02, Exec: execJ},
	{Mnemonic: "jal", Format: FormatJ, Syntax: SynJump, Opcode: 0x03, Exec: execJal},

	// Coprocessor 0. mfc0/mtc0 are discriminated by the rs field,
	// eret by the CO bit plus funct.
	{Mnemonic: "mfc0", Format: FormatR, Syntax: SynCop0, Opcode: opCop0, FixedRs: 0x00, Exec: execMfc0},
	{Mnemonic: "mtc0", Format: FormatR, Syntax: SynCop0, Opcode: opCop0, FixedRs: 0x04, Exec: execMtc0},
	{Mnemonic: "eret", Format: FormatR, Syntax: SynNone, Opcode: opCop0, FixedRs: 0x10, Funct: 0x18, Exec: execEret},
}

func init() {
	for _, s := range specs {
		Instructions[s.Mnemonic] = s
		switch {
		case s.Opcode == opSpecial && s.Format == FormatR:
			functTable[s.Funct] = s
		case s.Opcode == opRegimm:
			regimmTable[s.FixedRt] = s
		case s.Opcode == opCop0:
			if s.Mnemonic == "eret" {
				cop0Functs[s.Funct] = s
			} else {
				cop0Moves[s.FixedRs] = s
			}
		default:
			opcodeTable[s.Opcode] = s
		}
	}
}

// Lookup returns the spec for a mnemonic, or nil.
func Lookup(mnemonic string) *InstrSpec {
	return Instructions[mnemonic]
}
