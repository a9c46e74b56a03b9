package asm

import (
	"strconv"
	"strings"
)

// OperandKind tags what an assembler-level operand refers to, before
// any label has been resolved to a numeric offset.
type OperandKind int

const (
	KindNone OperandKind = iota
	KindReg8
	KindReg16
	KindSegReg
	KindImm
	KindLabel  // bare symbol used as an immediate/jump target
	KindOffset // OFFSET label / @DATA
	KindMem
	KindFarPtr // seg:off literal, the operand of a far JMP/CALL
)

// MemRef is a parsed `[...]` memory operand: the 8086 real-mode
// addressing forms are limited to BX|BP as base and SI|DI as index,
// optionally with a displacement or a bare label.
type MemRef struct {
	Base    string // "BX", "BP", or "" (none)
	Index   string // "SI" or "DI", or "" (none)
	Disp    int32
	HasDisp bool
	Label   string // set for [label] or [label+disp]; resolved in pass 2
	SegSize byte   // width hint from a BYTE PTR/WORD PTR prefix, 0 if absent
}

// Operand is one fully-parsed instruction operand.
type Operand struct {
	Kind   OperandKind
	Reg    byte // register index, cpu-package encoding
	Imm    int32
	Label  string
	Mem    MemRef
	FarSeg uint16 // segment half of a KindFarPtr operand; Imm holds the offset half
}

var reg8Index = map[string]byte{"AL": 0, "CL": 1, "DL": 2, "BL": 3, "AH": 4, "CH": 5, "DH": 6, "BH": 7}
var reg16Index = map[string]byte{"AX": 0, "CX": 1, "DX": 2, "BX": 3, "SP": 4, "BP": 5, "SI": 6, "DI": 7}
var segRegIndex = map[string]byte{"ES": 0, "CS": 1, "SS": 2, "DS": 3}

func isReg8(name string) (byte, bool)   { r, ok := reg8Index[name]; return r, ok }
func isReg16(name string) (byte, bool)  { r, ok := reg16Index[name]; return r, ok }
func isSegReg(name string) (byte, bool) { r, ok := segRegIndex[name]; return r, ok }

// parseOperands splits a comma-separated operand list and parses each
// term, stripping a leading BYTE PTR/WORD PTR width hint (needed when
// neither operand of an instruction is itself a register, e.g.
// `INC BYTE PTR [bx]`) before delegating to parseOperand.
func parseOperands(lineNum int, s string) ([]Operand, error) {
	var ops []Operand
	for _, tok := range splitOperands(s) {
		tok = strings.TrimSpace(tok)
		upper := strings.ToUpper(tok)
		var sizeHint byte
		switch {
		case strings.HasPrefix(upper, "BYTE PTR"):
			sizeHint = 1
			tok = strings.TrimSpace(tok[len("BYTE PTR"):])
		case strings.HasPrefix(upper, "WORD PTR"):
			sizeHint = 2
			tok = strings.TrimSpace(tok[len("WORD PTR"):])
		}
		op, err := parseOperand(tok, lineNum)
		if err != nil {
			return nil, err
		}
		if sizeHint != 0 && op.Kind == KindMem {
			op.Mem.SegSize = sizeHint
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// parseOperand parses one operand string (already comma-split and
// trimmed) into an Operand. Numeric literals accept decimal, `0x`/`h`
// hex, and single-quoted character forms; `OFFSET label` and `@DATA`
// resolve later against the symbol table.
func parseOperand(s string, lineNum int) (Operand, error) {
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)

	if r, ok := isReg8(upper); ok {
		return Operand{Kind: KindReg8, Reg: r}, nil
	}
	if r, ok := isReg16(upper); ok {
		return Operand{Kind: KindReg16, Reg: r}, nil
	}
	if r, ok := isSegReg(upper); ok {
		return Operand{Kind: KindSegReg, Reg: r}, nil
	}
	if upper == "@DATA" {
		return Operand{Kind: KindOffset, Label: "@DATA"}, nil
	}
	if strings.HasPrefix(upper, "OFFSET ") {
		label := strings.TrimSpace(s[len("OFFSET "):])
		return Operand{Kind: KindOffset, Label: label}, nil
	}
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		mem, err := parseMemRef(s[1:len(s)-1], lineNum)
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: KindMem, Mem: mem}, nil
	}
	if strings.HasPrefix(s, "'") {
		v, err := parseCharLiteral(s, lineNum)
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: KindImm, Imm: v}, nil
	}
	if seg, off, ok := parseFarPtr(s); ok {
		return Operand{Kind: KindFarPtr, FarSeg: seg, Imm: off}, nil
	}
	if v, ok := parseNumeric(s); ok {
		return Operand{Kind: KindImm, Imm: v}, nil
	}
	if isIdentifier(s) {
		return Operand{Kind: KindLabel, Label: s}, nil
	}
	return Operand{}, errf(lineNum, BadOperand, "cannot parse operand %q", s)
}

// parseFarPtr recognises the "seg:off" literal used as the operand of a
// far JMP/CALL, e.g. "0xF000:0xFFF0". Both halves must be plain
// numerics; a label on either side of the colon is not supported.
func parseFarPtr(s string) (seg uint16, off int32, ok bool) {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return 0, 0, false
	}
	segVal, ok1 := parseNumeric(strings.TrimSpace(s[:i]))
	offVal, ok2 := parseNumeric(strings.TrimSpace(s[i+1:]))
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return uint16(segVal), offVal, true
}

// parseMemRef parses the inside of a `[...]` operand: `bx`, `bx+si`,
// `bx+4`, `bp+si+10`, or a bare `label` / `label+disp`.
func parseMemRef(inner string, lineNum int) (MemRef, error) {
	inner = strings.ReplaceAll(inner, " ", "")
	var mem MemRef
	terms := splitAdditive(inner)
	for _, term := range terms {
		neg := false
		t := term
		if strings.HasPrefix(t, "-") {
			neg = true
			t = t[1:]
		}
		upper := strings.ToUpper(t)
		switch upper {
		case "BX", "BP":
			if mem.Base != "" {
				return MemRef{}, errf(lineNum, BadOperand, "duplicate base register in %q", inner)
			}
			mem.Base = upper
			continue
		case "SI", "DI":
			if mem.Index != "" {
				return MemRef{}, errf(lineNum, BadOperand, "duplicate index register in %q", inner)
			}
			mem.Index = upper
			continue
		}
		if v, ok := parseNumeric(t); ok {
			if neg {
				v = -v
			}
			mem.Disp += v
			mem.HasDisp = true
			continue
		}
		if isIdentifier(t) {
			if mem.Label != "" {
				return MemRef{}, errf(lineNum, BadOperand, "multiple labels in %q", inner)
			}
			mem.Label = t
			continue
		}
		return MemRef{}, errf(lineNum, BadOperand, "cannot parse memory term %q", term)
	}
	if mem.Base == "" && mem.Index == "" && mem.Label == "" && !mem.HasDisp {
		return MemRef{}, errf(lineNum, BadOperand, "empty memory operand")
	}
	return mem, nil
}

// splitAdditive splits "bx+si+10" into ["bx","si","10"], preserving a
// leading minus sign on a term as "-10".
func splitAdditive(s string) []string {
	var out []string
	start := 0
	for i := 1; i < len(s); i++ {
		if s[i] == '+' || s[i] == '-' {
			out = append(out, s[start:i])
			start = i
			if s[i] == '-' {
				continue
			}
			start = i + 1
		}
	}
	out = append(out, s[start:])
	var cleaned []string
	for _, t := range out {
		t = strings.TrimPrefix(t, "+")
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return cleaned
}

func parseCharLiteral(s string, lineNum int) (int32, error) {
	if len(s) < 3 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return 0, errf(lineNum, BadNumeric, "malformed character literal %q", s)
	}
	body := s[1 : len(s)-1]
	if len(body) != 1 {
		return 0, errf(lineNum, BadNumeric, "character literal must be one byte: %q", s)
	}
	return int32(body[0]), nil
}

// parseNumeric accepts decimal (`1234`), MASM hex (`1234h`, `0FFh`),
// and `0x`-prefixed hex.
func parseNumeric(s string) (int32, bool) {
	if s == "" {
		return 0, false
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var v int64
	var err error
	upper := strings.ToUpper(s)
	switch {
	case strings.HasPrefix(upper, "0X"):
		v, err = strconv.ParseInt(s[2:], 16, 64)
	case strings.HasSuffix(upper, "H"):
		v, err = strconv.ParseInt(s[:len(s)-1], 16, 64)
	default:
		v, err = strconv.ParseInt(s, 10, 64)
	}
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return int32(v), true
}
