package cpu

import (
	"strconv"
	"strings"
)

// Syscall service codes, selected through $v0.
const (
	SysPrintInt    = 1
	SysPrintString = 4
	SysReadInt     = 5
	SysReadString  = 8
	SysSbrk        = 9
	SysExit        = 10
	SysPrintChar   = 11
	SysReadChar    = 12
	SysExit2       = 17
)

// execSyscall dispatches on the service code in $v0. Unknown codes raise
// the syscall exception so kernel code (or the fault path) sees them;
// they are never a silent no-op.
func execSyscall(c *CPU, in *Decoded) error {
	switch c.Regs.Read(RegV0) {
	case SysPrintInt:
		c.print(strconv.FormatInt(int64(c.Regs.ReadSigned(RegA0)), 10))
	case SysPrintString:
		return c.printString(c.Regs.Read(RegA0))
	case SysReadInt:
		return c.readInt()
	case SysReadString:
		return c.readString(c.Regs.Read(RegA0), c.Regs.Read(RegA1))
	case SysSbrk:
		addr, exc := c.Mem.Sbrk(c.Regs.Read(RegA0))
		if exc != nil {
			return exc
		}
		c.Regs.Write(RegV0, addr)
	case SysExit:
		c.halt(0)
	case SysPrintChar:
		c.print(string(rune(c.Regs.Read(RegA0))))
	case SysReadChar:
		ch, _, err := c.in.ReadRune()
		if err != nil {
			return err
		}
		c.Regs.Write(RegV0, uint32(ch))
	case SysExit2:
		c.halt(int(c.Regs.ReadSigned(RegA0)))
	default:
		return excErr(ExcSyscall)
	}
	return nil
}

// printString emits the NUL-terminated string at addr. A string that
// runs into unreadable memory faults instead of looping forever.
func (c *CPU) printString(addr uint32) error {
	var sb strings.Builder
	for i := uint32(0); ; i++ {
		b, exc := c.Mem.LoadByte(addr+i, c.Regs.InKernel())
		if exc != nil {
			return exc
		}
		if b == 0 {
			break
		}
		sb.WriteByte(byte(b))
	}
	c.print(sb.String())
	return nil
}

func (c *CPU) readInt() error {
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(line), 10, 32)
	if err != nil {
		return err
	}
	c.Regs.Write(RegV0, uint32(int32(n)))
	return nil
}

// readString reads up to max-1 bytes into the buffer at addr,
// NUL-terminated, following the usual fgets contract. The write is
// all-or-nothing: a buffer reaching into unwritable memory faults
// before any byte is stored.
func (c *CPU) readString(addr, max uint32) error {
	if max == 0 {
		return nil
	}
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return err
	}
	line = strings.TrimSuffix(line, "\n")
	if uint32(len(line)) > max-1 {
		line = line[:max-1]
	}
	buf := append([]byte(line), 0)
	if exc := c.Mem.StoreBytes(addr, buf, c.Regs.InKernel()); exc != nil {
		return exc
	}
	return nil
}
