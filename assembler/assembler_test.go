package assembler_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mipsim/mips32/assembler"
	"github.com/mipsim/mips32/cpu"
)

// assemble wraps the body in a minimal runnable program.
func assemble(t *testing.T, body string) *cpu.Image {
	t.Helper()
	src := ".text\n.globl main\nmain:\n" + body + "\n"
	img, err := assembler.New().Assemble(src)
	require.NoError(t, err, "failed to assemble:\n%s", body)
	return img
}

func segment(t *testing.T, img *cpu.Image, kind cpu.SegmentKind) cpu.Segment {
	t.Helper()
	for _, seg := range img.Segments {
		if seg.Kind == kind {
			return seg
		}
	}
	t.Fatalf("image has no %s segment", kind)
	return cpu.Segment{}
}

func textWords(t *testing.T, img *cpu.Image) []uint32 {
	t.Helper()
	seg := segment(t, img, cpu.SegText)
	require.Zero(t, len(seg.Data)%4)
	words := make([]uint32, len(seg.Data)/4)
	for i := range words {
		words[i] = uint32(seg.Data[i*4]) | uint32(seg.Data[i*4+1])<<8 |
			uint32(seg.Data[i*4+2])<<16 | uint32(seg.Data[i*4+3])<<24
	}
	return words
}

// assembleAndMatch checks body against the expected instruction words.
func assembleAndMatch(t *testing.T, name, body string, expected ...uint32) {
	t.Helper()
	img := assemble(t, body)
	words := textWords(t, img)
	require.Equal(t, len(expected), len(words), "[%s] instruction count", name)
	for i := range expected {
		assert.Equalf(t, expected[i], words[i], "[%s] word %d: expected %08x, got %08x",
			name, i, expected[i], words[i])
	}
}

func TestBasicEncodings(t *testing.T) {
	tests := []struct {
		name, src string
		word      uint32
	}{
		{"ADD", "add $t0, $t1, $t2", 0x012a4020},
		{"ADDU", "addu $t0, $t1, $t2", 0x012a4021},
		{"SUB", "sub $t0, $t1, $t2", 0x012a4022},
		{"AND", "and $t0, $t1, $t2", 0x012a4024},
		{"OR", "or $t0, $t1, $t2", 0x012a4025},
		{"NOR", "nor $t0, $t1, $t2", 0x012a4027},
		{"SLT", "slt $t0, $t1, $t2", 0x012a402a},
		{"SLL", "sll $t0, $t1, 4", 0x00094100},
		{"SRA", "sra $t0, $t1, 4", 0x00094103},
		{"SLLV", "sllv $t0, $t1, $t2", 0x01494004},
		{"ADDI", "addi $t0, $t1, 100", 0x21280064},
		{"ADDI_Negative", "addi $t0, $t1, -4", 0x2128fffc},
		{"ADDIU", "addiu $t0, $t1, 100", 0x25280064},
		{"ANDI", "andi $t0, $t1, 0xff", 0x312800ff},
		{"ORI", "ori $t0, $t1, 0xff", 0x352800ff},
		{"LUI", "lui $t0, 0x1001", 0x3c081001},
		{"LW", "lw $t0, 4($sp)", 0x8fa80004},
		{"SW", "sw $t0, 4($sp)", 0xafa80004},
		{"LB", "lb $t0, -1($t1)", 0x8128ffff},
		{"LW_BareBase", "lw $t0, ($sp)", 0x8fa80000},
		{"JR", "jr $ra", 0x03e00008},
		{"JALR", "jalr $t0", 0x0100f809},
		{"SYSCALL", "syscall", 0x0000000c},
		{"BREAK", "break", 0x0000000d},
		{"MULT", "mult $t1, $t2", 0x012a0018},
		{"MFHI", "mfhi $t0", 0x00004010},
		{"MFC0", "mfc0 $t0, $12", 0x40086000},
		{"MTC0", "mtc0 $t0, $14", 0x40887000},
		{"ERET", "eret", 0x42000018},
		{"NumericRegs", "add $8, $9, $10", 0x012a4020},
		{"CharImmediate", "addi $t0, $zero, 'A'", 0x20080041},
	}
	for _, tc := range tests {
		assembleAndMatch(t, tc.name, tc.src, tc.word)
	}
}

func TestBranchAndJumpTargets(t *testing.T) {
	body := `
	beq $t0, $zero, done
	sll $zero, $zero, 0
done:
	j main
	jal main
`
	assembleAndMatch(t, "branches", body,
		0x11000001, // beq forward over one instruction
		0x00000000,
		0x08100000, // j 0x00400000
		0x0c100000, // jal 0x00400000
	)
}

func TestBackwardBranch(t *testing.T) {
	body := `
loop:	addiu $t0, $t0, 1
	bne $t0, $t1, loop
`
	// bne at 0x00400004, target 0x00400000: offset -2.
	assembleAndMatch(t, "backward", body, 0x25080001, 0x1509fffe)
}

func TestPseudoExpansions(t *testing.T) {
	tests := []struct {
		name, src string
		words     []uint32
	}{
		{"LI_Small", "li $t0, 5", []uint32{0x24080005}},
		{"LI_Negative", "li $t0, -1", []uint32{0x2408ffff}},
		{"LI_Unsigned16", "li $t0, 0xffff", []uint32{0x3408ffff}},
		{"LI_32bit", "li $t0, 0x12345678", []uint32{0x3c081234, 0x35085678}},
		{"MOVE", "move $t0, $t1", []uint32{0x00094021}},
		{"CLEAR", "clear $t0", []uint32{0x00004021}},
		{"NOP", "nop", []uint32{0x00000000}},
		{"NOT", "not $t0, $t1", []uint32{0x01204027}},
		{"NEG", "neg $t0, $t1", []uint32{0x00094022}},
		{"SGT", "sgt $t0, $t1, $t2", []uint32{0x0149402a}},
		{"MUL", "mul $t0, $t1, $t2", []uint32{0x012a0018, 0x00004012}},
	}
	for _, tc := range tests {
		assembleAndMatch(t, tc.name, tc.src, tc.words...)
	}
}

func TestPseudoBranches(t *testing.T) {
	body := `
	blt $t0, $t1, main
	bge $t0, $t1, main
	beqz $t0, main
	b main
`
	img := assemble(t, body)
	words := textWords(t, img)
	require.Len(t, words, 6)
	assert.Equal(t, uint32(0x0109082a), words[0]) // slt $at, $t0, $t1
	assert.Equal(t, uint32(0x1420fffe), words[1]) // bne $at, $zero, main
	assert.Equal(t, uint32(0x0109082a), words[2]) // slt $at, $t0, $t1
	assert.Equal(t, uint32(0x1020fffc), words[3]) // beq $at, $zero, main
	assert.Equal(t, uint32(0x1100fffb), words[4]) // beq $t0, $zero, main
	assert.Equal(t, uint32(0x1000fffa), words[5]) // beq $zero, $zero, main
}

func TestLoadAddress(t *testing.T) {
	src := `
.data
var:	.word 0
.text
.globl main
main:	la $t0, var
`
	img, err := assembler.New().Assemble(src)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x3c011001, 0x34280000}, textWords(t, img))
}

func TestDataDirectives(t *testing.T) {
	src := `
.data
str:	.asciiz "hi"
	.align 2
vals:	.word 1, 2
half:	.half 0x1234
	.byte 'A', -1
	.space 3
.text
.globl main
main:	nop
`
	img, err := assembler.New().Assemble(src)
	require.NoError(t, err)
	seg := segment(t, img, cpu.SegData)
	assert.Equal(t, uint32(cpu.DataBase), seg.Base)
	want := []byte{
		'h', 'i', 0, 0, // asciiz plus alignment pad
		1, 0, 0, 0, 2, 0, 0, 0, // words, little endian
		0x34, 0x12, // half
		'A', 0xff, // bytes
		0, 0, 0, // space
	}
	assert.Equal(t, want, seg.Data)
}

func TestWordWithLabelOperand(t *testing.T) {
	src := `
.data
ptr:	.word str
str:	.asciiz "x"
.text
.globl main
main:	nop
`
	img, err := assembler.New().Assemble(src)
	require.NoError(t, err)
	seg := segment(t, img, cpu.SegData)
	// str sits right after the pointer word.
	assert.Equal(t, []byte{0x04, 0x00, 0x01, 0x10}, seg.Data[:4])
}

func TestEquates(t *testing.T) {
	src := `
.eqv SIZE 8
.eqv DOUBLE SIZE * 2
.eqv MASK (1 << 4) - 1
.text
.globl main
main:	li $t0, DOUBLE
	andi $t1, $t0, MASK
`
	img, err := assembler.New().Assemble(src)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x24080010, 0x3109000f}, textWords(t, img))
}

func TestExternSymbols(t *testing.T) {
	src := `
.extern shared 8
.text
.globl main
main:	la $t0, shared
`
	img, err := assembler.New().Assemble(src)
	require.NoError(t, err)
	// lui $at, 0x1000 ; ori $t0, $at, 0
	assert.Equal(t, []uint32{0x3c011000, 0x34280000}, textWords(t, img))
}

func TestKernelSegments(t *testing.T) {
	src := `
.text
.globl main
main:	nop
.ktext
handler: eret
.kdata
	.word 7
`
	img, err := assembler.New().Assemble(src)
	require.NoError(t, err)
	ktext := segment(t, img, cpu.SegKText)
	assert.Equal(t, uint32(cpu.KTextBase), ktext.Base)
	assert.True(t, img.HasKernelText())
	kdata := segment(t, img, cpu.SegKData)
	assert.Equal(t, uint32(cpu.KDataBase), kdata.Base)
}

func TestEntryPoint(t *testing.T) {
	src := `
.text
.globl __start
__start:	nop
`
	img, err := assembler.New().Assemble(src)
	require.NoError(t, err)
	assert.Equal(t, uint32(cpu.TextBase), img.Entry)
}

func diagKinds(t *testing.T, src string) []assembler.DiagKind {
	t.Helper()
	_, err := assembler.New().Assemble(src)
	require.Error(t, err)
	list, ok := err.(*assembler.ErrorList)
	require.True(t, ok, "expected an ErrorList, got %T", err)
	var kinds []assembler.DiagKind
	for _, d := range list.Diags {
		kinds = append(kinds, d.Kind)
	}
	return kinds
}

func TestErrorReporting(t *testing.T) {
	tests := []struct {
		name, src string
		kind      assembler.DiagKind
	}{
		{"MissingEntry", ".text\nnop\n", assembler.MissingEntryPoint},
		{"DuplicateLabel", ".text\n.globl main\nmain: nop\nmain: nop\n", assembler.DuplicateSymbol},
		{"DuplicateEquate", ".eqv A 1\n.eqv A 2\n.text\n.globl main\nmain: nop\n", assembler.DuplicateSymbol},
		{"UnresolvedBranch", ".text\n.globl main\nmain: beq $t0, $zero, nowhere\n", assembler.UnresolvedSymbol},
		{"UnresolvedGlobal", ".text\n.globl main\n.globl ghost\nmain: nop\n", assembler.UnresolvedSymbol},
		{"ImmediateTooBig", ".text\n.globl main\nmain: addi $t0, $t1, 70000\n", assembler.ImmediateOverflow},
		{"ShiftTooBig", ".text\n.globl main\nmain: sll $t0, $t1, 32\n", assembler.ImmediateOverflow},
		{"BadRegister", ".text\n.globl main\nmain: add $t0, $t1, $bogus\n", assembler.LexError},
		{"UnknownDirective", ".bogus\n.text\n.globl main\nmain: nop\n", assembler.SyntaxError},
		{"InstrInData", ".data\nnop\n.text\n.globl main\nmain: nop\n", assembler.SyntaxError},
		{"DataInText", ".text\n.globl main\nmain: .word 1\nnop\n", assembler.SyntaxError},
		{"SegmentRewind", ".text 0x00400000\n.globl main\nmain: nop\nnop\n.text 0x00400004\n", assembler.SegmentOverlap},
		{"SegmentCollision", ".data 0x00400004\n.word 1\n.text\n.globl main\nmain: nop\nnop\n", assembler.SegmentOverlap},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Contains(t, diagKinds(t, tc.src), tc.kind)
		})
	}
}

func TestErrorBatching(t *testing.T) {
	src := `
.text
.globl main
main:
	add $t0, $t1
	addi $t0, $t1, 99999
	beq $t0, $zero, gone
`
	_, err := assembler.New().Assemble(src)
	require.Error(t, err)
	list := err.(*assembler.ErrorList)
	assert.GreaterOrEqual(t, len(list.Diags), 3, "all errors reported in one run")
}

func TestErrorCap(t *testing.T) {
	src := ".text\n.globl main\nmain: nop\n"
	for i := 0; i < 40; i++ {
		src += "add $t0, $t1\n"
	}
	_, err := assembler.New().Assemble(src)
	require.Error(t, err)
	list := err.(*assembler.ErrorList)
	assert.LessOrEqual(t, len(list.Diags), 21, "diagnostics capped")
}

func TestSymbolListing(t *testing.T) {
	asm := assembler.New()
	_, err := asm.Assemble(".data\nv: .word 1\n.text\n.globl main\nmain: nop\n")
	require.NoError(t, err)
	syms := asm.Symbols()
	require.Len(t, syms, 2)
	assert.Equal(t, "main", syms[0].Name)
	assert.True(t, syms[0].Global)
	assert.Equal(t, "v", syms[1].Name)
	assert.Equal(t, cpu.SegData, syms[1].Segment)
}

func TestCommentsAndBlankLines(t *testing.T) {
	body := `
	# leading comment
	add $t0, $t1, $t2   # trailing comment

	nop
`
	assembleAndMatch(t, "comments", body, 0x012a4020, 0x00000000)
}

func TestSourceLineMap(t *testing.T) {
	src := ".text\n.globl main\nmain:\tnop\n\tnop\n"
	img, err := assembler.New().Assemble(src)
	require.NoError(t, err)
	assert.Equal(t, 3, img.LineFor(cpu.TextBase))
	assert.Equal(t, 4, img.LineFor(cpu.TextBase+4))
}

func TestNearestSymbol(t *testing.T) {
	asm := assembler.New()
	_, err := asm.Assemble(".text\n.globl main\nmain:\tnop\n\tnop\nloop:\tnop\n")
	require.NoError(t, err)

	sym := asm.NearestSymbol(cpu.TextBase + 4)
	require.NotNil(t, sym)
	assert.Equal(t, "main", sym.Name)

	sym = asm.NearestSymbol(cpu.TextBase + 8)
	require.NotNil(t, sym)
	assert.Equal(t, "loop", sym.Name)

	assert.Nil(t, asm.NearestSymbol(cpu.TextBase-4), "no symbol below the first label")
}

func TestIncludeSplicesFile(t *testing.T) {
	dir := t.TempDir()
	defs := filepath.Join(dir, "defs.asm")
	require.NoError(t, os.WriteFile(defs, []byte(".eqv LEN 4\n"), 0644))
	top := filepath.Join(dir, "main.asm")
	src := ".include \"defs.asm\"\n.text\n.globl main\nmain:\tli $t0, LEN\n"
	require.NoError(t, os.WriteFile(top, []byte(src), 0644))

	img, err := assembler.New().AssembleFile(top)
	require.NoError(t, err)
	words := textWords(t, img)
	require.Len(t, words, 1)
	assert.Equal(t, uint32(0x24080004), words[0]) // addiu $t0, $zero, 4
}

func TestIncludeCycleFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "self.asm")
	require.NoError(t, os.WriteFile(path, []byte(".include \"self.asm\"\n"), 0644))

	_, err := assembler.New().AssembleFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nesting too deep")
}

func TestIncludeRequiresFileSource(t *testing.T) {
	src := ".include \"defs.asm\"\n.text\n.globl main\nmain:\tnop\n"
	assert.Contains(t, diagKinds(t, src), assembler.SyntaxError)
}
