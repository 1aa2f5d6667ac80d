package cpu

// Execution handlers for the ISA table. Each handler mutates registers
// and memory for exactly one instruction; trapping conditions are
// returned as *Exception and dispatched by Step.

func branchTarget(in *Decoded) uint32 {
	return in.Addr + 4 + uint32(in.SImm)<<2
}

func jumpTarget(in *Decoded) uint32 {
	return (in.Addr+4)&0xf0000000 | in.Target<<2
}

// Shifts.

func execSll(c *CPU, in *Decoded) error {
	c.Regs.Write(in.Rd, c.Regs.Read(in.Rt)<<in.Shamt)
	return nil
}

func execSrl(c *CPU, in *Decoded) error {
	c.Regs.Write(in.Rd, c.Regs.Read(in.Rt)>>in.Shamt)
	return nil
}

func execSra(c *CPU, in *Decoded) error {
	c.Regs.Write(in.Rd, uint32(c.Regs.ReadSigned(in.Rt)>>in.Shamt))
	return nil
}

func execSllv(c *CPU, in *Decoded) error {
	c.Regs.Write(in.Rd, c.Regs.Read(in.Rt)<<(c.Regs.Read(in.Rs)&31))
	return nil
}

func execSrlv(c *CPU, in *Decoded) error {
	c.Regs.Write(in.Rd, c.Regs.Read(in.Rt)>>(c.Regs.Read(in.Rs)&31))
	return nil
}

func execSrav(c *CPU, in *Decoded) error {
	c.Regs.Write(in.Rd, uint32(c.Regs.ReadSigned(in.Rt)>>(c.Regs.Read(in.Rs)&31)))
	return nil
}

// Arithmetic. add/sub/addi trap on signed overflow and leave the
// destination untouched; the unsigned variants wrap.

func execAdd(c *CPU, in *Decoded) error {
	a, b := c.Regs.ReadSigned(in.Rs), c.Regs.ReadSigned(in.Rt)
	sum := a + b
	if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
		return excErr(ExcOverflow)
	}
	c.Regs.Write(in.Rd, uint32(sum))
	return nil
}

func execAddu(c *CPU, in *Decoded) error {
	c.Regs.Write(in.Rd, c.Regs.Read(in.Rs)+c.Regs.Read(in.Rt))
	return nil
}

func execSub(c *CPU, in *Decoded) error {
	a, b := c.Regs.ReadSigned(in.Rs), c.Regs.ReadSigned(in.Rt)
	diff := a - b
	if (a >= 0 && b < 0 && diff < 0) || (a < 0 && b >= 0 && diff >= 0) {
		return excErr(ExcOverflow)
	}
	c.Regs.Write(in.Rd, uint32(diff))
	return nil
}

func execSubu(c *CPU, in *Decoded) error {
	c.Regs.Write(in.Rd, c.Regs.Read(in.Rs)-c.Regs.Read(in.Rt))
	return nil
}

func execAddi(c *CPU, in *Decoded) error {
	a := c.Regs.ReadSigned(in.Rs)
	sum := a + in.SImm
	if (a > 0 && in.SImm > 0 && sum < 0) || (a < 0 && in.SImm < 0 && sum >= 0) {
		return excErr(ExcOverflow)
	}
	c.Regs.Write(in.Rt, uint32(sum))
	return nil
}

func execAddiu(c *CPU, in *Decoded) error {
	c.Regs.Write(in.Rt, c.Regs.Read(in.Rs)+uint32(in.SImm))
	return nil
}

// Logic.

func execAnd(c *CPU, in *Decoded) error {
	c.Regs.Write(in.Rd, c.Regs.Read(in.Rs)&c.Regs.Read(in.Rt))
	return nil
}

func execOr(c *CPU, in *Decoded) error {
	c.Regs.Write(in.Rd, c.Regs.Read(in.Rs)|c.Regs.Read(in.Rt))
	return nil
}

func execXor(c *CPU, in *Decoded) error {
	c.Regs.Write(in.Rd, c.Regs.Read(in.Rs)^c.Regs.Read(in.Rt))
	return nil
}

func execNor(c *CPU, in *Decoded) error {
	c.Regs.Write(in.Rd, ^(c.Regs.Read(in.Rs) | c.Regs.Read(in.Rt)))
	return nil
}

func execAndi(c *CPU, in *Decoded) error {
	c.Regs.Write(in.Rt, c.Regs.Read(in.Rs)&in.Imm)
	return nil
}

func execOri(c *CPU, in *Decoded) error {
	c.Regs.Write(in.Rt, c.Regs.Read(in.Rs)|in.Imm)
	return nil
}

func execXori(c *CPU, in *Decoded) error {
	c.Regs.Write(in.Rt, c.Regs.Read(in.Rs)^in.Imm)
	return nil
}

func execLui(c *CPU, in *Decoded) error {
	c.Regs.Write(in.Rt, in.Imm<<16)
	return nil
}

// Comparisons.

func execSlt(c *CPU, in *Decoded) error {
	var v uint32
	if c.Regs.ReadSigned(in.Rs) < c.Regs.ReadSigned(in.Rt) {
		v = 1
	}
	c.Regs.Write(in.Rd, v)
	return nil
}

func execSltu(c *CPU, in *Decoded) error {
	var v uint32
	if c.Regs.Read(in.Rs) < c.Regs.Read(in.Rt) {
		v = 1
	}
	c.Regs.Write(in.Rd, v)
	return nil
}

func execSlti(c *CPU, in *Decoded) error {
	var v uint32
	if c.Regs.ReadSigned(in.Rs) < in.SImm {
		v = 1
	}
	c.Regs.Write(in.Rt, v)
	return nil
}

func execSltiu(c *CPU, in *Decoded) error {
	var v uint32
	if c.Regs.Read(in.Rs) < uint32(in.SImm) {
		v = 1
	}
	c.Regs.Write(in.Rt, v)
	return nil
}

// Multiply and divide through HI/LO.

func execMult(c *CPU, in *Decoded) error {
	p := int64(c.Regs.ReadSigned(in.Rs)) * int64(c.Regs.ReadSigned(in.Rt))
	c.Regs.HI = uint32(uint64(p) >> 32)
	c.Regs.LO = uint32(uint64(p))
	return nil
}

func execMultu(c *CPU, in *Decoded) error {
	p := uint64(c.Regs.Read(in.Rs)) * uint64(c.Regs.Read(in.Rt))
	c.Regs.HI = uint32(p >> 32)
	c.Regs.LO = uint32(p)
	return nil
}

func execDiv(c *CPU, in *Decoded) error {
	d := c.Regs.ReadSigned(in.Rt)
	if d == 0 {
		return excErr(ExcDivideZero)
	}
	n := c.Regs.ReadSigned(in.Rs)
	c.Regs.LO = uint32(n / d)
	c.Regs.HI = uint32(n % d)
	return nil
}

func execDivu(c *CPU, in *Decoded) error {
	d := c.Regs.Read(in.Rt)
	if d == 0 {
		return excErr(ExcDivideZero)
	}
	n := c.Regs.Read(in.Rs)
	c.Regs.LO = n / d
	c.Regs.HI = n % d
	return nil
}

func execMfhi(c *CPU, in *Decoded) error {
	c.Regs.Write(in.Rd, c.Regs.HI)
	return nil
}

func execMflo(c *CPU, in *Decoded) error {
	c.Regs.Write(in.Rd, c.Regs.LO)
	return nil
}

func execMthi(c *CPU, in *Decoded) error {
	c.Regs.HI = c.Regs.Read(in.Rs)
	return nil
}

func execMtlo(c *CPU, in *Decoded) error {
	c.Regs.LO = c.Regs.Read(in.Rs)
	return nil
}

// Branches and jumps. Taken branches latch the target; the delay slot
// instruction executes before the transfer commits.

func execBeq(c *CPU, in *Decoded) error {
	if c.Regs.Read(in.Rs) == c.Regs.Read(in.Rt) {
		c.branch(branchTarget(in))
	}
	return nil
}

func execBne(c *CPU, in *Decoded) error {
	if c.Regs.Read(in.Rs) != c.Regs.Read(in.Rt) {
		c.branch(branchTarget(in))
	}
	return nil
}

func execBlez(c *CPU, in *Decoded) error {
	if c.Regs.ReadSigned(in.Rs) <= 0 {
		c.branch(branchTarget(in))
	}
	return nil
}

func execBgtz(c *CPU, in *Decoded) error {
	if c.Regs.ReadSigned(in.Rs) > 0 {
		c.branch(branchTarget(in))
	}
	return nil
}

func execBltz(c *CPU, in *Decoded) error {
	if c.Regs.ReadSigned(in.Rs) < 0 {
		c.branch(branchTarget(in))
	}
	return nil
}

func execBgez(c *CPU, in *Decoded) error {
	if c.Regs.ReadSigned(in.Rs) >= 0 {
		c.branch(branchTarget(in))
	}
	return nil
}

func execJ(c *CPU, in *Decoded) error {
	c.branch(jumpTarget(in))
	return nil
}

func execJal(c *CPU, in *Decoded) error {
	c.Regs.Write(RegRA, in.Addr+8)
	c.branch(jumpTarget(in))
	return nil
}

func execJr(c *CPU, in *Decoded) error {
	c.branch(c.Regs.Read(in.Rs))
	return nil
}

func execJalr(c *CPU, in *Decoded) error {
	rd := in.Rd
	if rd == 0 {
		rd = RegRA
	}
	c.Regs.Write(rd, in.Addr+8)
	c.branch(c.Regs.Read(in.Rs))
	return nil
}

// Loads and stores.

func execLb(c *CPU, in *Decoded) error {
	v, exc := c.Mem.LoadByte(c.Regs.Read(in.Rs)+uint32(in.SImm), c.Regs.InKernel())
	if exc != nil {
		return exc
	}
	c.Regs.Write(in.Rt, uint32(int32(int8(v))))
	return nil
}

func execLbu(c *CPU, in *Decoded) error {
	v, exc := c.Mem.LoadByte(c.Regs.Read(in.Rs)+uint32(in.SImm), c.Regs.InKernel())
	if exc != nil {
		return exc
	}
	c.Regs.Write(in.Rt, v)
	return nil
}

func execLh(c *CPU, in *Decoded) error {
	v, exc := c.Mem.LoadHalf(c.Regs.Read(in.Rs)+uint32(in.SImm), c.Regs.InKernel())
	if exc != nil {
		return exc
	}
	c.Regs.Write(in.Rt, uint32(int32(int16(v))))
	return nil
}

func execLhu(c *CPU, in *Decoded) error {
	v, exc := c.Mem.LoadHalf(c.Regs.Read(in.Rs)+uint32(in.SImm), c.Regs.InKernel())
	if exc != nil {
		return exc
	}
	c.Regs.Write(in.Rt, v)
	return nil
}

func execLw(c *CPU, in *Decoded) error {
	v, exc := c.Mem.LoadWord(c.Regs.Read(in.Rs)+uint32(in.SImm), c.Regs.InKernel())
	if exc != nil {
		return exc
	}
	c.Regs.Write(in.Rt, v)
	return nil
}

func execSb(c *CPU, in *Decoded) error {
	if exc := c.Mem.StoreByte(c.Regs.Read(in.Rs)+uint32(in.SImm), c.Regs.Read(in.Rt), c.Regs.InKernel()); exc != nil {
		return exc
	}
	return nil
}

func execSh(c *CPU, in *Decoded) error {
	if exc := c.Mem.StoreHalf(c.Regs.Read(in.Rs)+uint32(in.SImm), c.Regs.Read(in.Rt), c.Regs.InKernel()); exc != nil {
		return exc
	}
	return nil
}

func execSw(c *CPU, in *Decoded) error {
	if exc := c.Mem.StoreWord(c.Regs.Read(in.Rs)+uint32(in.SImm), c.Regs.Read(in.Rt), c.Regs.InKernel()); exc != nil {
		return exc
	}
	return nil
}

// Traps and coprocessor 0.

func execBreak(c *CPU, in *Decoded) error {
	return excErr(ExcBreakpoint)
}

func execMfc0(c *CPU, in *Decoded) error {
	c.Regs.Write(in.Rt, c.Regs.ReadCP0(in.Rd))
	return nil
}

func execMtc0(c *CPU, in *Decoded) error {
	c.Regs.WriteCP0(in.Rd, c.Regs.Read(in.Rt))
	return nil
}

// execEret leaves exception level and resumes past the trapping
// instruction. The simulator has no retry semantics, so the +4 happens
// here rather than in handler code.
func execEret(c *CPU, in *Decoded) error {
	c.Regs.WriteCP0(CP0Status, c.Regs.ReadCP0(CP0Status)&^uint32(StatusEXL))
	c.redirect = true
	c.redirectTo = c.Regs.ReadCP0(CP0EPC) + 4
	return nil
}
