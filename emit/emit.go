// Package emit renders an asmgen.Program as AT&T-syntax x86-64 assembly
// text (spec.md §4.7): one template per instruction variant, a standard
// prologue/epilogue pair around every function body, and .data/.bss
// placement for file-scope storage.
package emit

import (
	"fmt"
	"strings"

	"nanoc/asmgen"
	"nanoc/ast"
)

// Program renders prog as a complete assembly file, including the
// trailing GNU-stack note the teacher's own assembler output carries.
func Program(prog *asmgen.Program) string {
	var b strings.Builder
	for _, top := range prog.TopLevel {
		switch v := top.(type) {
		case *asmgen.Function:
			writeFunction(&b, v)
		case *asmgen.Static:
			writeStatic(&b, v)
		}
	}
	b.WriteString("\n.section .note.GNU-stack,\"\",@progbits\n")
	return b.String()
}

func writeFunction(b *strings.Builder, fn *asmgen.Function) {
	if fn.Global {
		fmt.Fprintf(b, "\t.globl %s\n", fn.Name)
	}
	fmt.Fprintf(b, "\t.text\n%s:\n", fn.Name)
	b.WriteString("\tpushq\t%rbp\n")
	b.WriteString("\tmovq\t%rsp, %rbp\n")
	for _, instr := range fn.Instructions {
		writeInstr(b, instr)
	}
}

func writeStatic(b *strings.Builder, s *asmgen.Static) {
	if s.Global {
		fmt.Fprintf(b, "\t.globl %s\n", s.Name)
	}
	if s.Zero {
		b.WriteString("\t.bss\n")
		fmt.Fprintf(b, "\t.align %d\n", s.Size)
		fmt.Fprintf(b, "%s:\n", s.Name)
		fmt.Fprintf(b, "\t.zero %d\n", s.Size)
		return
	}
	b.WriteString("\t.data\n")
	fmt.Fprintf(b, "\t.align %d\n", s.Size)
	fmt.Fprintf(b, "%s:\n", s.Name)
	if s.Size == 8 {
		fmt.Fprintf(b, "\t.quad %d\n", s.Value.Value)
	} else {
		fmt.Fprintf(b, "\t.long %d\n", s.Value.Value)
	}
}

func writeInstr(b *strings.Builder, instr asmgen.Instr) {
	switch v := instr.(type) {
	case asmgen.AllocateStack:
		if v.Bytes != 0 {
			fmt.Fprintf(b, "\tsubq\t$%d, %%rsp\n", v.Bytes)
		}
	case asmgen.DeallocateStack:
		fmt.Fprintf(b, "\taddq\t$%d, %%rsp\n", v.Bytes)
	case asmgen.Mov:
		fmt.Fprintf(b, "\t%s\t%s, %s\n", mnemonic("mov", v.Size), operand(v.Src, v.Size), operand(v.Dest, v.Size))
	case asmgen.Movsx:
		fmt.Fprintf(b, "\tmovslq\t%s, %s\n", operand(v.Src, 4), operand(v.Dest, 8))
	case asmgen.MovAbsq:
		fmt.Fprintf(b, "\tmovabsq\t$%d, %s\n", v.Value.Value, operand(v.Dest, 8))
	case asmgen.Binary:
		srcSize := v.Size
		if _, ok := v.Src.(asmgen.Register); ok && (v.Op == ast.OpShl || v.Op == ast.OpShr) {
			srcSize = 1 // a variable shift count is read from %cl
		}
		fmt.Fprintf(b, "\t%s\t%s, %s\n", binaryMnemonic(v), operand(v.Src, srcSize), operand(v.Dest, v.Size))
	case asmgen.Cmp:
		fmt.Fprintf(b, "\t%s\t%s, %s\n", mnemonic("cmp", v.Size), operand(v.Right, v.Size), operand(v.Left, v.Size))
	case asmgen.Idiv:
		fmt.Fprintf(b, "\t%s\t%s\n", mnemonic("idiv", v.Size), operand(v.Operand, v.Size))
	case asmgen.Cdq:
		if v.Size == 8 {
			b.WriteString("\tcqto\n")
		} else {
			b.WriteString("\tcltd\n")
		}
	case asmgen.Jmp:
		fmt.Fprintf(b, "\tjmp\t%s\n", v.Label)
	case asmgen.JmpCC:
		fmt.Fprintf(b, "\tj%s\t%s\n", v.Cond, v.Label)
	case asmgen.SetCC:
		fmt.Fprintf(b, "\tset%s\t%s\n", v.Cond, operand(v.Dest, 1))
	case asmgen.LabelInstr:
		fmt.Fprintf(b, "%s:\n", v.Name)
	case asmgen.Push:
		fmt.Fprintf(b, "\tpushq\t%s\n", operand(v.Operand, 8))
	case asmgen.Call:
		fmt.Fprintf(b, "\tcall\t%s\n", v.Name)
	case asmgen.Ret:
		b.WriteString("\tmovq\t%rbp, %rsp\n")
		b.WriteString("\tpopq\t%rbp\n")
		b.WriteString("\tret\n")
	case asmgen.Unary:
		fmt.Fprintf(b, "\t%s\t%s\n", unaryMnemonic(v), operand(v.Dest, v.Size))
	}
}

func mnemonic(base string, size int) string {
	if size == 8 {
		return base + "q"
	}
	if size == 1 {
		return base + "b"
	}
	return base + "l"
}

func binaryMnemonic(v asmgen.Binary) string {
	switch v.Op {
	case ast.OpAdd:
		return mnemonic("add", v.Size)
	case ast.OpSub:
		return mnemonic("sub", v.Size)
	case ast.OpMul:
		return mnemonic("imul", v.Size)
	case ast.OpBitAnd:
		return mnemonic("and", v.Size)
	case ast.OpBitOr:
		return mnemonic("or", v.Size)
	case ast.OpBitXor:
		return mnemonic("xor", v.Size)
	case ast.OpShl:
		return mnemonic("shl", v.Size)
	case ast.OpShr:
		if v.Signed {
			return mnemonic("sar", v.Size)
		}
		return mnemonic("shr", v.Size)
	default:
		return "??? binary"
	}
}

func unaryMnemonic(v asmgen.Unary) string {
	switch v.Op {
	case ast.OpComplement:
		return mnemonic("not", v.Size)
	default: // OpUnaryMinus
		return mnemonic("neg", v.Size)
	}
}

func operand(o asmgen.Operand, size int) string {
	switch v := o.(type) {
	case asmgen.Imm:
		return fmt.Sprintf("$%d", v.Value.Value)
	case asmgen.Register:
		return registerName(v.Class, size)
	case asmgen.Stack:
		return fmt.Sprintf("%d(%%rbp)", v.Offset)
	case asmgen.Data:
		return fmt.Sprintf("%s(%%rip)", v.Name)
	default:
		return "???"
	}
}

// registerName spells a RegClass at the width its containing
// instruction operates on: byte (SetCC destinations), 32-bit, or
// 64-bit.
func registerName(c asmgen.RegClass, size int) string {
	names := map[asmgen.RegClass][3]string{
		asmgen.AX:  {"%al", "%eax", "%rax"},
		asmgen.CX:  {"%cl", "%ecx", "%rcx"},
		asmgen.DX:  {"%dl", "%edx", "%rdx"},
		asmgen.DI:  {"%dil", "%edi", "%rdi"},
		asmgen.SI:  {"%sil", "%esi", "%rsi"},
		asmgen.R8:  {"%r8b", "%r8d", "%r8"},
		asmgen.R9:  {"%r9b", "%r9d", "%r9"},
		asmgen.R10: {"%r10b", "%r10d", "%r10"},
		asmgen.R11: {"%r11b", "%r11d", "%r11"},
		asmgen.SP:  {"%spl", "%esp", "%rsp"},
		asmgen.BP:  {"%bpl", "%ebp", "%rbp"},
	}
	row, ok := names[c]
	if !ok {
		return "%???"
	}
	switch size {
	case 1:
		return row[0]
	case 8:
		return row[2]
	default:
		return row[1]
	}
}
