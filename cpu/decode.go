package cpu

// Decoded holds the extracted fields of one fetched instruction word.
type Decoded struct {
	Spec *InstrSpec
	Word uint32
	Addr uint32

	Rs, Rt, Rd int
	Shamt      uint32
	Imm        uint32 // zero-extended 16-bit immediate
	SImm       int32  // sign-extended 16-bit immediate
	Target     uint32 // 26-bit jump target field
}

// Decode maps an instruction word to its ISA table entry and extracts
// the operand fields. An unknown encoding is a reserved-instruction
// exception.
func Decode(word, addr uint32) (*Decoded, *Exception) {
	in := &Decoded{
		Word:   word,
		Addr:   addr,
		Rs:     int(word >> 21 & 31),
		Rt:     int(word >> 16 & 31),
		Rd:     int(word >> 11 & 31),
		Shamt:  word >> 6 & 31,
		Imm:    word & 0xffff,
		SImm:   int32(int16(word & 0xffff)),
		Target: word & 0x3ffffff,
	}

	switch word >> 26 {
	case opSpecial:
		in.Spec = functTable[word&0x3f]
	case opRegimm:
		in.Spec = regimmTable[in.Rt]
	case opCop0:
		if word&(1<<25) != 0 {
			in.Spec = cop0Functs[word&0x3f]
		} else {
			in.Spec = cop0Moves[in.Rs]
		}
	default:
		in.Spec = opcodeTable[word>>26]
	}

	if in.Spec == nil {
		return nil, excErr(ExcReserved)
	}
	return in, nil
}
