package asm

import (
	"fmt"
	"strings"

	"github.com/coresim/sim8086/internal/cpu"
)

// Symbol is a label's resolved location: an offset within its own
// segment (code or data), not a physical address — the loader decides
// where CS/DS actually land in memory.
type Symbol struct {
	Offset uint16
	Code   bool
}

// Program is the result of a successful Assemble call.
type Program struct {
	Code        []byte
	Data        []byte
	Symbols     map[string]Symbol
	EntryOffset uint16
	Listing     []string // only populated by AssembleWithListing
}

type segment int

const (
	segCode segment = iota
	segData
)

// Assembler holds the state that accumulates across a single pass;
// Assemble runs it twice over the same source, once to size
// instructions and collect labels, once to emit final bytes against
// the now-known symbol table.
type Assembler struct {
	equates    map[string]int32
	labels     map[string]Symbol
	seg        segment
	codeOff    uint16
	dataOff    uint16
	entryLabel string
}

// Assemble runs the two-pass assembler over source and returns the
// finished program, or the first AssemblyError encountered. No bytes
// are ever handed back on error — pass 2 only runs once pass 1 has
// fully succeeded.
func Assemble(source string) (*Program, error) {
	return assemble(source, false)
}

// AssembleWithListing is Assemble plus an address/bytes/source listing
// attached to the returned Program.
func AssembleWithListing(source string) (*Program, error) {
	return assemble(source, true)
}

func assemble(source string, listing bool) (*Program, error) {
	lines := splitLines(source)
	a := &Assembler{}
	if err := a.pass1(lines); err != nil {
		return nil, err
	}
	return a.pass2(lines, listing)
}

func (a *Assembler) curOffset() uint16 {
	if a.seg == segCode {
		return a.codeOff
	}
	return a.dataOff
}

func (a *Assembler) advance(n int) {
	if a.seg == segCode {
		a.codeOff += uint16(n)
	} else {
		a.dataOff += uint16(n)
	}
}

// pass1 walks the source purely to measure instruction/data lengths
// and record label offsets; it never resolves a label to a value, so
// forward references never affect sizing (per the determinism
// requirement: instruction size depends only on operand kinds).
func (a *Assembler) pass1(lines []sourceLine) error {
	a.seg = segCode
	a.codeOff = 0
	a.dataOff = 0
	a.labels = map[string]Symbol{}
	a.equates = map[string]int32{}

	for _, ln := range lines {
		label, rest := a.splitLabelAndRest(ln.text)
		mnemonic, operandStr := fields(rest)

		if mnemonic == "EQU" {
			v, err := a.evalEquExpr(operandStr, ln.num)
			if err != nil {
				return err
			}
			a.equates[strings.ToUpper(label)] = v
			continue
		}

		if label != "" && mnemonic != "ENDP" {
			key := strings.ToUpper(label)
			if _, exists := a.labels[key]; exists {
				return errf(ln.num, DuplicateLabel, "label %q already defined", label)
			}
			a.labels[key] = Symbol{Offset: a.curOffset(), Code: a.seg == segCode}
		}

		if mnemonic == "" {
			continue
		}
		stop, err := a.sizeLine(ln.num, mnemonic, operandStr)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return nil
}

func (a *Assembler) sizeLine(lineNum int, mnemonic, operandStr string) (stop bool, err error) {
	switch mnemonic {
	case ".MODEL", ".STACK", "PROC", "ENDP":
		return false, nil
	case ".DATA":
		a.seg = segData
		return false, nil
	case ".CODE":
		a.seg = segCode
		return false, nil
	case "SECTION":
		a.applySectionDirective(operandStr)
		return false, nil
	case "ORG":
		v, ok := parseNumeric(strings.TrimSpace(operandStr))
		if !ok {
			return false, errf(lineNum, BadNumeric, "invalid ORG operand %q", operandStr)
		}
		if a.seg == segCode {
			a.codeOff = uint16(v)
		} else {
			a.dataOff = uint16(v)
		}
		return false, nil
	case "END":
		a.entryLabel = strings.TrimSpace(operandStr)
		return true, nil
	case "DB", "DW":
		width := 1
		if mnemonic == "DW" {
			width = 2
		}
		n, err := dataItemSize(width, operandStr, lineNum)
		if err != nil {
			return false, err
		}
		a.advance(n)
		return false, nil
	}

	ctx := encCtx{
		line:   lineNum,
		addr:   a.curOffset(),
		strict: false,
		resolve: func(string) (uint16, bool, bool) {
			return 0, false, false
		},
	}
	bytes, err := a.assembleInstruction(ctx, mnemonic, operandStr)
	if err != nil {
		return false, err
	}
	a.advance(len(bytes))
	return false, nil
}

// pass2 replays the same lines with the label table now fixed,
// emitting real bytes and range-checking short jumps.
func (a *Assembler) pass2(lines []sourceLine, listing bool) (*Program, error) {
	a.seg = segCode
	a.codeOff = 0
	a.dataOff = 0
	a.equates = map[string]int32{}

	resolve := func(name string) (uint16, bool, bool) {
		if name == "@DATA" {
			return uint16(cpu.DefaultDS), false, true
		}
		sym, ok := a.labels[strings.ToUpper(name)]
		if !ok {
			return 0, false, false
		}
		return sym.Offset, sym.Code, true
	}

	var code, data []byte
	var listingLines []string

	for _, ln := range lines {
		label, rest := a.splitLabelAndRest(ln.text)
		mnemonic, operandStr := fields(rest)

		if mnemonic == "EQU" {
			v, err := a.evalEquExpr(operandStr, ln.num)
			if err != nil {
				return nil, err
			}
			a.equates[strings.ToUpper(label)] = v
			continue
		}
		if mnemonic == "" {
			continue
		}

		startAddr := a.curOffset()
		emitted, stop, err := a.emitLine(ln.num, mnemonic, operandStr, resolve)
		if err != nil {
			return nil, err
		}
		if len(emitted) > 0 {
			if a.seg == segCode {
				code = append(code, emitted...)
			} else {
				data = append(data, emitted...)
			}
			a.advance(len(emitted))
		}
		if listing {
			listingLines = append(listingLines, formatListing(startAddr, emitted, ln.text))
		}
		if stop {
			break
		}
	}

	entryOff := uint16(0)
	if a.entryLabel != "" {
		sym, ok := a.labels[strings.ToUpper(a.entryLabel)]
		if !ok {
			return nil, errf(0, UndefinedLabel, "entry label %q is undefined", a.entryLabel)
		}
		entryOff = sym.Offset
	}

	prog := &Program{Code: code, Data: data, Symbols: a.labels, EntryOffset: entryOff}
	if listing {
		prog.Listing = listingLines
	}
	return prog, nil
}

func (a *Assembler) emitLine(lineNum int, mnemonic, operandStr string, resolve func(string) (uint16, bool, bool)) ([]byte, bool, error) {
	switch mnemonic {
	case ".MODEL", ".STACK", "PROC", "ENDP":
		return nil, false, nil
	case ".DATA":
		a.seg = segData
		return nil, false, nil
	case ".CODE":
		a.seg = segCode
		return nil, false, nil
	case "SECTION":
		a.applySectionDirective(operandStr)
		return nil, false, nil
	case "ORG":
		v, ok := parseNumeric(strings.TrimSpace(operandStr))
		if !ok {
			return nil, false, errf(lineNum, BadNumeric, "invalid ORG operand %q", operandStr)
		}
		if a.seg == segCode {
			a.codeOff = uint16(v)
		} else {
			a.dataOff = uint16(v)
		}
		return nil, false, nil
	case "END":
		return nil, true, nil
	case "DB", "DW":
		width := 1
		if mnemonic == "DW" {
			width = 2
		}
		b, err := emitDataItems(width, operandStr, lineNum, func(name string) (uint16, bool) {
			off, _, ok := resolve(name)
			return off, ok
		})
		return b, false, err
	}

	ctx := encCtx{line: lineNum, addr: a.curOffset(), strict: true, resolve: resolve}
	b, err := a.assembleInstruction(ctx, mnemonic, operandStr)
	return b, false, err
}

func (a *Assembler) applySectionDirective(operandStr string) {
	s := strings.ToUpper(strings.TrimSpace(operandStr))
	switch {
	case strings.HasPrefix(s, ".DATA"):
		a.seg = segData
	case strings.HasPrefix(s, ".TEXT"), strings.HasPrefix(s, ".CODE"):
		a.seg = segCode
	}
}

func (a *Assembler) evalEquExpr(expr string, lineNum int) (int32, error) {
	expr = strings.TrimSpace(expr)
	if v, ok := parseNumeric(expr); ok {
		return v, nil
	}
	if strings.HasPrefix(expr, "'") {
		return parseCharLiteral(expr, lineNum)
	}
	if v, ok := a.equates[strings.ToUpper(expr)]; ok {
		return v, nil
	}
	return 0, errf(lineNum, BadNumeric, "cannot evaluate EQU expression %q", expr)
}

var repPrefix = map[string]byte{"REP": 0xF3, "REPE": 0xF3, "REPZ": 0xF3, "REPNE": 0xF2, "REPNZ": 0xF2}

// assembleInstruction handles the REP/REPE/REPNE prefix mnemonics, the
// explicit "JMP SHORT label" spelling, and the "FAR"-qualified
// JMP/CALL/RET spellings (plus the bare RETF alias) before delegating
// to encodeInstruction; all of these recurse into the same operand
// parsing and equate substitution as every other mnemonic.
func (a *Assembler) assembleInstruction(ctx encCtx, mnemonic, operandStr string) ([]byte, error) {
	if prefix, ok := repPrefix[mnemonic]; ok {
		innerMnemonic, innerOperandStr := fields(operandStr)
		ops, err := a.parseOperandsResolved(ctx.line, innerOperandStr)
		if err != nil {
			return nil, err
		}
		innerCtx := ctx
		innerCtx.addr = ctx.addr + 1
		body, err := encodeInstruction(innerCtx, innerMnemonic, ops)
		if err != nil {
			return nil, err
		}
		return append([]byte{prefix}, body...), nil
	}

	if mnemonic == "JMP" {
		trimmed := strings.TrimSpace(operandStr)
		if len(trimmed) > 6 && strings.EqualFold(trimmed[:6], "SHORT ") {
			op, err := parseOperand(strings.TrimSpace(trimmed[6:]), ctx.line)
			if err != nil {
				return nil, err
			}
			op = a.substituteEquate(op)
			return encodeJmpShort(ctx, []Operand{op})
		}
	}

	if mnemonic == "RETF" {
		return encodeRetFar(ctx, operandStr)
	}
	if rest, ok := stripFarKeyword(operandStr); ok {
		switch mnemonic {
		case "JMP":
			op, err := parseOperand(rest, ctx.line)
			if err != nil {
				return nil, err
			}
			return encodeJmpFar(ctx, op)
		case "CALL":
			op, err := parseOperand(rest, ctx.line)
			if err != nil {
				return nil, err
			}
			return encodeCallFar(ctx, op)
		case "RET", "RETN":
			return encodeRetFar(ctx, rest)
		}
	}

	ops, err := a.parseOperandsResolved(ctx.line, operandStr)
	if err != nil {
		return nil, err
	}
	return encodeInstruction(ctx, mnemonic, ops)
}

// stripFarKeyword recognises a leading "FAR" token on a JMP/CALL/RET
// operand string ("FAR 0x1000:0x2000", or bare "FAR" for RET) and
// returns what follows it, trimmed.
func stripFarKeyword(operandStr string) (rest string, ok bool) {
	trimmed := strings.TrimSpace(operandStr)
	upper := strings.ToUpper(trimmed)
	switch {
	case upper == "FAR":
		return "", true
	case strings.HasPrefix(upper, "FAR "):
		return strings.TrimSpace(trimmed[4:]), true
	}
	return "", false
}

func (a *Assembler) parseOperandsResolved(lineNum int, s string) ([]Operand, error) {
	ops, err := parseOperands(lineNum, s)
	if err != nil {
		return nil, err
	}
	for i := range ops {
		ops[i] = a.substituteEquate(ops[i])
	}
	return ops, nil
}

// substituteEquate rewrites a bare-label operand into an immediate
// when the name is actually an EQU constant rather than a code/data
// label — the parser can't tell the two apart on sight.
func (a *Assembler) substituteEquate(op Operand) Operand {
	if op.Kind == KindLabel {
		if v, ok := a.equates[strings.ToUpper(op.Label)]; ok {
			return Operand{Kind: KindImm, Imm: v}
		}
	}
	return op
}

// splitLabelAndRest recognises both label forms the assembler accepts:
// a colon-terminated name, or a bare identifier that precedes a
// directive keyword (the "msg DB 'hi'" / "myproc PROC" style).
func (a *Assembler) splitLabelAndRest(line string) (label, rest string) {
	if lbl, r := splitLabel(line); lbl != "" {
		return lbl, r
	}
	first, remainder := firstWord(line)
	upperFirst := strings.ToUpper(first)
	if isKnownMnemonic(upperFirst) || isDirective(upperFirst) {
		return "", line
	}
	if !isIdentifier(first) {
		return "", line
	}
	next, _ := firstWord(remainder)
	if isDirective(strings.ToUpper(next)) {
		return first, remainder
	}
	return "", line
}

func firstWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	sp := strings.IndexAny(s, " \t")
	if sp < 0 {
		return s, ""
	}
	return s[:sp], strings.TrimSpace(s[sp+1:])
}

var otherMnemonics = map[string]bool{
	"MOV": true, "PUSH": true, "POP": true, "XCHG": true, "LEA": true,
	"INC": true, "DEC": true, "NOT": true, "NEG": true, "MUL": true, "IMUL": true,
	"DIV": true, "IDIV": true, "TEST": true,
	"SHL": true, "SAL": true, "SHR": true, "SAR": true, "ROL": true, "ROR": true, "RCL": true, "RCR": true,
	"JMP": true, "CALL": true, "RET": true, "RETN": true, "RETF": true,
	"LOOP": true, "LOOPE": true, "LOOPZ": true, "LOOPNE": true, "LOOPNZ": true, "JCXZ": true,
	"INT": true, "REP": true, "REPE": true, "REPZ": true, "REPNE": true, "REPNZ": true,
}

func isKnownMnemonic(word string) bool {
	if _, ok := noOperandOps[word]; ok {
		return true
	}
	if _, ok := jccCond[word]; ok {
		return true
	}
	if _, ok := grp1Index[word]; ok {
		return true
	}
	if _, ok := grp2Index[word]; ok {
		return true
	}
	return otherMnemonics[word]
}

var directiveWords = map[string]bool{
	".MODEL": true, ".STACK": true, ".DATA": true, ".CODE": true,
	"ORG": true, "SECTION": true, "END": true, "PROC": true, "ENDP": true,
	"EQU": true, "DB": true, "DW": true,
}

func isDirective(word string) bool { return directiveWords[word] }

func formatListing(addr uint16, bytes []byte, source string) string {
	hexParts := make([]string, len(bytes))
	for i, b := range bytes {
		hexParts[i] = fmt.Sprintf("%02X", b)
	}
	return fmt.Sprintf("%04X  %-24s  %s", addr, strings.Join(hexParts, " "), source)
}
