package asmgen

import "nanoc/ast"

// Fixup resolves every Pseudo operand to a concrete Stack slot, computes
// each function's frame size, and legalizes the x86-64 operand
// combinations spec.md §4.6 calls out: no memory-to-memory operand pair,
// 64-bit immediates loaded through movabsq, MovZeroExtend expanded to its
// two-mov form, and %r10/%r11 reserved as scratch (never assigned to a
// pseudoregister, since Fixup only ever hands them out itself, after
// every Pseudo has already been resolved to a Stack slot).
func Fixup(prog *Program) {
	for _, top := range prog.TopLevel {
		if fn, ok := top.(*Function); ok {
			fixupFunction(fn)
		}
	}
}

func fixupFunction(fn *Function) {
	offsets := map[int]int{}
	next := 8
	resolve := func(o Operand) Operand {
		p, ok := o.(Pseudo)
		if !ok {
			return o
		}
		off, seen := offsets[p.Index]
		if !seen {
			off = next
			offsets[p.Index] = off
			next += 8
		}
		return Stack{Offset: -off}
	}

	resolved := make([]Instr, 0, len(fn.Instructions))
	for _, instr := range fn.Instructions {
		resolved = append(resolved, resolveInstrOperands(instr, resolve))
	}

	frameSize := alignTo16(next - 8)
	out := make([]Instr, 0, len(resolved))
	for _, instr := range resolved {
		if _, ok := instr.(AllocateStack); ok {
			out = append(out, AllocateStack{Bytes: frameSize})
			continue
		}
		out = append(out, legalize(instr)...)
	}
	fn.Instructions = out
}

func alignTo16(n int) int {
	if n%16 == 0 {
		return n
	}
	return n + (16 - n%16)
}

func resolveInstrOperands(instr Instr, resolve func(Operand) Operand) Instr {
	switch v := instr.(type) {
	case Mov:
		return Mov{Size: v.Size, Src: resolve(v.Src), Dest: resolve(v.Dest)}
	case Movsx:
		return Movsx{Src: resolve(v.Src), Dest: resolve(v.Dest)}
	case MovZeroExtend:
		return MovZeroExtend{Src: resolve(v.Src), Dest: resolve(v.Dest)}
	case Binary:
		return Binary{Op: v.Op, Size: v.Size, Src: resolve(v.Src), Dest: resolve(v.Dest), Signed: v.Signed}
	case Cmp:
		return Cmp{Size: v.Size, Left: resolve(v.Left), Right: resolve(v.Right)}
	case Idiv:
		return Idiv{Size: v.Size, Operand: resolve(v.Operand)}
	case Push:
		return Push{Operand: resolve(v.Operand)}
	case SetCC:
		return SetCC{Cond: v.Cond, Dest: resolve(v.Dest)}
	case Unary:
		return Unary{Op: v.Op, Size: v.Size, Dest: resolve(v.Dest)}
	default:
		// Cdq, Jmp, JmpCC, LabelInstr, Call, Ret, AllocateStack,
		// DeallocateStack carry no operands.
		return instr
	}
}

func legalize(instr Instr) []Instr {
	switch v := instr.(type) {
	case Mov:
		return legalizeMov(v)
	case Binary:
		return legalizeBinary(v)
	case Cmp:
		return legalizeCmp(v)
	case Idiv:
		return legalizeIdiv(v)
	case MovZeroExtend:
		return legalizeMovZeroExtend(v)
	case Push:
		return legalizePush(v)
	default:
		return []Instr{instr}
	}
}

func isMemory(o Operand) bool {
	switch o.(type) {
	case Stack, Data:
		return true
	default:
		return false
	}
}

func fitsInt32(v uint64) bool {
	s := int64(v)
	return s >= -(1<<31) && s <= (1<<31-1)
}

func legalizeMov(v Mov) []Instr {
	if imm, ok := v.Src.(Imm); ok && v.Size == 8 && !fitsInt32(imm.Value.Value) {
		scratch := Register{Class: R10}
		return []Instr{MovAbsq{Value: imm.Value, Dest: scratch}, Mov{Size: 8, Src: scratch, Dest: v.Dest}}
	}
	if isMemory(v.Src) && isMemory(v.Dest) {
		scratch := Register{Class: R10}
		return []Instr{Mov{Size: v.Size, Src: v.Src, Dest: scratch}, Mov{Size: v.Size, Src: scratch, Dest: v.Dest}}
	}
	return []Instr{v}
}

func legalizeBinary(v Binary) []Instr {
	switch v.Op {
	case ast.OpMul:
		return legalizeMul(v)
	case ast.OpShl, ast.OpShr:
		return legalizeShift(v)
	default:
		return legalizeGenericBinary(v)
	}
}

func legalizeGenericBinary(v Binary) []Instr {
	if imm, ok := v.Src.(Imm); ok && v.Size == 8 && !fitsInt32(imm.Value.Value) {
		scratch := Register{Class: R10}
		return []Instr{
			MovAbsq{Value: imm.Value, Dest: scratch},
			Binary{Op: v.Op, Size: v.Size, Src: scratch, Dest: v.Dest, Signed: v.Signed},
		}
	}
	if isMemory(v.Src) && isMemory(v.Dest) {
		scratch := Register{Class: R10}
		return []Instr{
			Mov{Size: v.Size, Src: v.Src, Dest: scratch},
			Binary{Op: v.Op, Size: v.Size, Src: scratch, Dest: v.Dest, Signed: v.Signed},
		}
	}
	return []Instr{v}
}

// legalizeMul handles imul's two restrictions: it has no memory-immediate
// 64-bit form, and it can never write directly to a memory destination.
func legalizeMul(v Binary) []Instr {
	var out []Instr
	src := v.Src
	if imm, ok := src.(Imm); ok && v.Size == 8 && !fitsInt32(imm.Value.Value) {
		out = append(out, MovAbsq{Value: imm.Value, Dest: Register{Class: R10}})
		src = Register{Class: R10}
	}
	if isMemory(v.Dest) {
		scratch := Register{Class: R11}
		out = append(out, Mov{Size: v.Size, Src: v.Dest, Dest: scratch})
		out = append(out, Binary{Op: ast.OpMul, Size: v.Size, Src: src, Dest: scratch, Signed: v.Signed})
		out = append(out, Mov{Size: v.Size, Src: scratch, Dest: v.Dest})
		return out
	}
	out = append(out, Binary{Op: ast.OpMul, Size: v.Size, Src: src, Dest: v.Dest, Signed: v.Signed})
	return out
}

// legalizeShift loads a non-immediate shift count into %cl: the variable
// shift forms only read their count from that one register.
func legalizeShift(v Binary) []Instr {
	if _, ok := v.Src.(Imm); ok {
		return []Instr{v}
	}
	return []Instr{
		Mov{Size: 1, Src: v.Src, Dest: Register{Class: CX}},
		Binary{Op: v.Op, Size: v.Size, Src: Register{Class: CX}, Dest: v.Dest, Signed: v.Signed},
	}
}

func legalizeCmp(v Cmp) []Instr {
	var out []Instr
	left, right := v.Left, v.Right
	if imm, ok := left.(Imm); ok && v.Size == 8 && !fitsInt32(imm.Value.Value) {
		out = append(out, MovAbsq{Value: imm.Value, Dest: Register{Class: R10}})
		left = Register{Class: R10}
	}
	if imm, ok := right.(Imm); ok && v.Size == 8 && !fitsInt32(imm.Value.Value) {
		out = append(out, MovAbsq{Value: imm.Value, Dest: Register{Class: R11}})
		right = Register{Class: R11}
	}
	if isMemory(left) && isMemory(right) {
		scratch := Register{Class: R10}
		out = append(out, Mov{Size: v.Size, Src: left, Dest: scratch})
		left = scratch
	}
	if _, ok := left.(Imm); ok {
		// cmp's first (AT&T destination) operand can never be an immediate.
		scratch := Register{Class: R11}
		out = append(out, Mov{Size: v.Size, Src: left, Dest: scratch})
		left = scratch
	}
	out = append(out, Cmp{Size: v.Size, Left: left, Right: right})
	return out
}

func legalizeIdiv(v Idiv) []Instr {
	if _, ok := v.Operand.(Imm); ok {
		scratch := Register{Class: R10}
		return []Instr{Mov{Size: v.Size, Src: v.Operand, Dest: scratch}, Idiv{Size: v.Size, Operand: scratch}}
	}
	return []Instr{v}
}

// legalizeMovZeroExtend always expands to the documented two-mov form: a
// 32-bit load into %r11d (the hardware zero-extends the upper 32 bits of
// %r11 for free), then a 64-bit mov out to the real destination, which in
// this module is almost always a stack slot a 32-bit mov cannot
// zero-extend into directly.
func legalizeMovZeroExtend(v MovZeroExtend) []Instr {
	scratch := Register{Class: R11}
	return []Instr{
		Mov{Size: 4, Src: v.Src, Dest: scratch},
		Mov{Size: 8, Src: scratch, Dest: v.Dest},
	}
}

func legalizePush(v Push) []Instr {
	if imm, ok := v.Operand.(Imm); ok && !fitsInt32(imm.Value.Value) {
		scratch := Register{Class: R10}
		return []Instr{MovAbsq{Value: imm.Value, Dest: scratch}, Push{Operand: scratch}}
	}
	return []Instr{v}
}
