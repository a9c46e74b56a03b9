package cpu

// Opcode tags the decoded instruction shape. decode() produces exactly
// one Instruction per fetch; execute() switches on Op — the "decode
// once, then dispatch" pattern. An opcode byte or Op value with no
// case is not caught at compile time: it reaches execute() as
// OpUndefined (or an unmatched Op) and raises Fault{InvalidOpcode}.
type Opcode int

const (
	OpUndefined Opcode = iota
	OpMOV
	OpMOVSEG
	OpADD
	OpOR
	OpADC
	OpSBB
	OpAND
	OpSUB
	OpXOR
	OpCMP
	OpINC
	OpDEC
	OpPUSH
	OpPOP
	OpNOT
	OpNEG
	OpTEST
	OpMUL
	OpIMUL
	OpDIV
	OpIDIV
	OpSHL
	OpSHR
	OpSAR
	OpROL
	OpROR
	OpRCL
	OpRCR
	OpCBW
	OpCWD
	OpLAHF
	OpSAHF
	OpCLC
	OpSTC
	OpCLI
	OpSTI
	OpCLD
	OpSTD
	OpNOP
	OpHLT
	OpJMP
	OpJMPFAR
	OpJMPIND
	OpJcc
	OpLOOP
	OpLOOPE
	OpLOOPNE
	OpJCXZ
	OpCALL
	OpCALLFAR
	OpCALLIND
	OpRET
	OpRETIMM
	OpRETFAR
	OpRETFARIMM
	OpINT
	OpINT3
	OpIRET
	OpMOVSB
	OpMOVSW
	OpSTOSB
	OpSTOSW
	OpLODSB
	OpLODSW
	OpCMPSB
	OpCMPSW
	OpSCASB
	OpSCASW
	OpXCHG
	OpLEA
	OpPUSHF
	OpPOPF
)

// OperandKind distinguishes what an Operand actually addresses.
type OperandKind byte

const (
	OpNone OperandKind = iota
	OpReg8
	OpReg16
	OpSegRegKind
	OpMem
	OpImmKind
)

// Operand is a fully-resolved instruction operand: for a register it
// names the register index, for memory it carries the already
// segment-resolved address, for an immediate it carries the value.
type Operand struct {
	Kind OperandKind
	Reg  byte
	Seg  uint16
	Off  uint16
	Imm  uint16
}

// Rep prefix values.
const (
	RepNone = 0
	RepZ    = 1 // REP / REPE / REPZ
	RepNZ   = 2 // REPNE / REPNZ
)

// Instruction is the tagged, fully-decoded form of one machine
// instruction: every operand has already been resolved against the
// current register/segment state, so execute() never re-reads ModR/M
// or immediate bytes.
type Instruction struct {
	Op      Opcode
	Width   byte // 1 or 2
	Dst     Operand
	Src     Operand
	Cond    byte
	Target  uint16
	TargetSeg uint16
	HasTargetSeg bool
	Rep     byte
	StartIP uint16
}

// jcc condition indices, matching the 0x70-0x7F/0x80-0x8F encoding
// order.
const (
	condO = iota
	condNO
	condB
	condNB
	condZ
	condNZ
	condBE
	condNBE
	condS
	condNS
	condP
	condNP
	condL
	condNL
	condLE
	condNLE
)

// decode fetches and decodes exactly one instruction at CS:IP,
// advancing IP past it. Prefix bytes (segment override, REP/REPNE)
// are consumed and folded into the returned Instruction.
func (c *CPU) decode() Instruction {
	start := c.IP
	c.prefixSeg = -1
	c.prefixRep = RepNone
	c.modrmLoaded = false

	var op byte
	for {
		op = c.fetchByte()
		switch op {
		case 0x26:
			c.prefixSeg = SegES
			continue
		case 0x2E:
			c.prefixSeg = SegCS
			continue
		case 0x36:
			c.prefixSeg = SegSS
			continue
		case 0x3E:
			c.prefixSeg = SegDS
			continue
		case 0xF2:
			c.prefixRep = RepNZ
			continue
		case 0xF3:
			c.prefixRep = RepZ
			continue
		}
		break
	}

	instr := c.decodeOpcode(op)
	instr.StartIP = start
	instr.Rep = c.prefixRep
	return instr
}

// decodeOpcode decodes everything after the opcode byte (ModR/M,
// displacement, immediate) and returns the tagged instruction.
func (c *CPU) decodeOpcode(op byte) Instruction {
	if op < 0x40 && aluGroup(op) >= 0 {
		return c.decodeALU(op)
	}

	switch op {
	case 0x06:
		return Instruction{Op: OpPUSH, Width: 2, Src: Operand{Kind: OpImmKind, Imm: c.ES}}
	case 0x07:
		return Instruction{Op: OpPOP, Width: 2, Dst: Operand{Kind: OpSegRegKind, Reg: SegES}}
	case 0x0E:
		return Instruction{Op: OpPUSH, Width: 2, Src: Operand{Kind: OpImmKind, Imm: c.CS}}
	case 0x16:
		return Instruction{Op: OpPUSH, Width: 2, Src: Operand{Kind: OpImmKind, Imm: c.SS}}
	case 0x17:
		return Instruction{Op: OpPOP, Width: 2, Dst: Operand{Kind: OpSegRegKind, Reg: SegSS}}
	case 0x1E:
		return Instruction{Op: OpPUSH, Width: 2, Src: Operand{Kind: OpImmKind, Imm: c.DS}}
	case 0x1F:
		return Instruction{Op: OpPOP, Width: 2, Dst: Operand{Kind: OpSegRegKind, Reg: SegDS}}

	case 0x40, 0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x47:
		return Instruction{Op: OpINC, Width: 2, Dst: Operand{Kind: OpReg16, Reg: op - 0x40}}
	case 0x48, 0x49, 0x4A, 0x4B, 0x4C, 0x4D, 0x4E, 0x4F:
		return Instruction{Op: OpDEC, Width: 2, Dst: Operand{Kind: OpReg16, Reg: op - 0x48}}
	case 0x50, 0x51, 0x52, 0x53, 0x54, 0x55, 0x56, 0x57:
		return Instruction{Op: OpPUSH, Width: 2, Src: Operand{Kind: OpReg16, Reg: op - 0x50}}
	case 0x58, 0x59, 0x5A, 0x5B, 0x5C, 0x5D, 0x5E, 0x5F:
		return Instruction{Op: OpPOP, Width: 2, Dst: Operand{Kind: OpReg16, Reg: op - 0x58}}

	case 0x70, 0x71, 0x72, 0x73, 0x74, 0x75, 0x76, 0x77,
		0x78, 0x79, 0x7A, 0x7B, 0x7C, 0x7D, 0x7E, 0x7F:
		rel := int8(c.fetchByte())
		target := uint16(int32(c.IP) + int32(rel))
		return Instruction{Op: OpJcc, Cond: op - 0x70, Target: target}

	case 0x80:
		return c.decodeGrp1(1, false)
	case 0x81:
		return c.decodeGrp1(2, false)
	case 0x83:
		return c.decodeGrp1(2, true)

	case 0x84:
		return c.decodeRMReg(OpTEST, 1)
	case 0x85:
		return c.decodeRMReg(OpTEST, 2)

	case 0x86:
		return c.decodeRMReg(OpXCHG, 1)
	case 0x87:
		return c.decodeRMReg(OpXCHG, 2)

	case 0x88:
		return c.decodeMOVEbGb(1, false)
	case 0x89:
		return c.decodeMOVEbGb(2, false)
	case 0x8A:
		return c.decodeMOVEbGb(1, true)
	case 0x8B:
		return c.decodeMOVEbGb(2, true)
	case 0x8C:
		reg, rm := c.decodeModRM(2)
		return Instruction{Op: OpMOVSEG, Width: 2, Dst: rm, Src: Operand{Kind: OpSegRegKind, Reg: reg}}
	case 0x8D:
		reg, rm := c.decodeModRMLEA()
		return Instruction{Op: OpLEA, Width: 2, Dst: Operand{Kind: OpReg16, Reg: reg}, Src: rm}
	case 0x8E:
		reg, rm := c.decodeModRM(2)
		return Instruction{Op: OpMOVSEG, Width: 2, Dst: Operand{Kind: OpSegRegKind, Reg: reg}, Src: rm}
	case 0x8F:
		_, rm := c.decodeModRM(2)
		return Instruction{Op: OpPOP, Width: 2, Dst: rm}

	case 0x90:
		return Instruction{Op: OpNOP}

	case 0x98:
		return Instruction{Op: OpCBW}
	case 0x99:
		return Instruction{Op: OpCWD}
	case 0x9A:
		ip := c.fetchWord()
		cs := c.fetchWord()
		return Instruction{Op: OpCALLFAR, Target: ip, TargetSeg: cs, HasTargetSeg: true}
	case 0x9C:
		return Instruction{Op: OpPUSHF}
	case 0x9D:
		return Instruction{Op: OpPOPF}
	case 0x9E:
		return Instruction{Op: OpSAHF}
	case 0x9F:
		return Instruction{Op: OpLAHF}

	case 0xA4:
		return Instruction{Op: OpMOVSB, Width: 1}
	case 0xA5:
		return Instruction{Op: OpMOVSW, Width: 2}
	case 0xA6:
		return Instruction{Op: OpCMPSB, Width: 1}
	case 0xA7:
		return Instruction{Op: OpCMPSW, Width: 2}
	case 0xA8:
		imm := c.fetchByte()
		return Instruction{Op: OpTEST, Width: 1, Dst: Operand{Kind: OpReg8, Reg: 0}, Src: Operand{Kind: OpImmKind, Imm: uint16(imm)}}
	case 0xA9:
		imm := c.fetchWord()
		return Instruction{Op: OpTEST, Width: 2, Dst: Operand{Kind: OpReg16, Reg: 0}, Src: Operand{Kind: OpImmKind, Imm: imm}}
	case 0xAA:
		return Instruction{Op: OpSTOSB, Width: 1}
	case 0xAB:
		return Instruction{Op: OpSTOSW, Width: 2}
	case 0xAC:
		return Instruction{Op: OpLODSB, Width: 1}
	case 0xAD:
		return Instruction{Op: OpLODSW, Width: 2}
	case 0xAE:
		return Instruction{Op: OpSCASB, Width: 1}
	case 0xAF:
		return Instruction{Op: OpSCASW, Width: 2}

	case 0xB0, 0xB1, 0xB2, 0xB3, 0xB4, 0xB5, 0xB6, 0xB7:
		imm := c.fetchByte()
		return Instruction{Op: OpMOV, Width: 1, Dst: Operand{Kind: OpReg8, Reg: op - 0xB0}, Src: Operand{Kind: OpImmKind, Imm: uint16(imm)}}
	case 0xB8, 0xB9, 0xBA, 0xBB, 0xBC, 0xBD, 0xBE, 0xBF:
		imm := c.fetchWord()
		return Instruction{Op: OpMOV, Width: 2, Dst: Operand{Kind: OpReg16, Reg: op - 0xB8}, Src: Operand{Kind: OpImmKind, Imm: imm}}

	case 0xC0:
		return c.decodeGrp2(1, true)
	case 0xC1:
		return c.decodeGrp2(2, true)
	case 0xC2:
		imm := c.fetchWord()
		return Instruction{Op: OpRETIMM, Target: imm}
	case 0xC3:
		return Instruction{Op: OpRET}
	case 0xC6:
		_, rm := c.decodeModRM(1)
		imm := c.fetchByte()
		return Instruction{Op: OpMOV, Width: 1, Dst: rm, Src: Operand{Kind: OpImmKind, Imm: uint16(imm)}}
	case 0xC7:
		_, rm := c.decodeModRM(2)
		imm := c.fetchWord()
		return Instruction{Op: OpMOV, Width: 2, Dst: rm, Src: Operand{Kind: OpImmKind, Imm: imm}}

	case 0xCA:
		imm := c.fetchWord()
		return Instruction{Op: OpRETFARIMM, Target: imm}
	case 0xCB:
		return Instruction{Op: OpRETFAR}
	case 0xCC:
		return Instruction{Op: OpINT3}
	case 0xCD:
		imm := c.fetchByte()
		return Instruction{Op: OpINT, Src: Operand{Kind: OpImmKind, Imm: uint16(imm)}}
	case 0xCF:
		return Instruction{Op: OpIRET}

	case 0xD0:
		return c.decodeGrp2Fixed(1, 1)
	case 0xD1:
		return c.decodeGrp2Fixed(2, 1)
	case 0xD2:
		return c.decodeGrp2CL(1)
	case 0xD3:
		return c.decodeGrp2CL(2)

	case 0xE0:
		rel := int8(c.fetchByte())
		return Instruction{Op: OpLOOPNE, Target: uint16(int32(c.IP) + int32(rel))}
	case 0xE1:
		rel := int8(c.fetchByte())
		return Instruction{Op: OpLOOPE, Target: uint16(int32(c.IP) + int32(rel))}
	case 0xE2:
		rel := int8(c.fetchByte())
		return Instruction{Op: OpLOOP, Target: uint16(int32(c.IP) + int32(rel))}
	case 0xE3:
		rel := int8(c.fetchByte())
		return Instruction{Op: OpJCXZ, Target: uint16(int32(c.IP) + int32(rel))}

	case 0xE8:
		rel := int16(c.fetchWord())
		return Instruction{Op: OpCALL, Target: uint16(int32(c.IP) + int32(rel))}
	case 0xE9:
		rel := int16(c.fetchWord())
		return Instruction{Op: OpJMP, Target: uint16(int32(c.IP) + int32(rel))}
	case 0xEA:
		ip := c.fetchWord()
		cs := c.fetchWord()
		return Instruction{Op: OpJMPFAR, Target: ip, TargetSeg: cs, HasTargetSeg: true}
	case 0xEB:
		rel := int8(c.fetchByte())
		return Instruction{Op: OpJMP, Target: uint16(int32(c.IP) + int32(rel))}

	case 0xF4:
		return Instruction{Op: OpHLT}
	case 0xF6:
		return c.decodeGrp3(1)
	case 0xF7:
		return c.decodeGrp3(2)
	case 0xF8:
		return Instruction{Op: OpCLC}
	case 0xF9:
		return Instruction{Op: OpSTC}
	case 0xFA:
		return Instruction{Op: OpCLI}
	case 0xFB:
		return Instruction{Op: OpSTI}
	case 0xFC:
		return Instruction{Op: OpCLD}
	case 0xFD:
		return Instruction{Op: OpSTD}
	case 0xFE:
		return c.decodeGrp45(1)
	case 0xFF:
		return c.decodeGrp45(2)
	}

	return Instruction{Op: OpUndefined}
}

// aluGroup maps an opcode byte in one of the eight ALU families to its
// Opcode tag, or -1 if op does not belong to any of them. The eight
// families each occupy six opcodes: Eb,Gb / Ev,Gv / Gb,Eb / Gv,Ev /
// AL,Ib / AX,Iv, at base+0..base+5.
func aluGroup(op byte) int {
	base := op &^ 0x07
	if op-base > 5 {
		return -1
	}
	switch base {
	case 0x00:
		return int(OpADD)
	case 0x08:
		return int(OpOR)
	case 0x10:
		return int(OpADC)
	case 0x18:
		return int(OpSBB)
	case 0x20:
		return int(OpAND)
	case 0x28:
		return int(OpSUB)
	case 0x30:
		return int(OpXOR)
	case 0x38:
		return int(OpCMP)
	}
	return -1
}

func (c *CPU) decodeALU(op byte) Instruction {
	tag := Opcode(aluGroup(op))
	sub := op & 0x07
	switch sub {
	case 0: // Eb, Gb
		reg, rm := c.decodeModRM(1)
		return Instruction{Op: tag, Width: 1, Dst: rm, Src: Operand{Kind: OpReg8, Reg: reg}}
	case 1: // Ev, Gv
		reg, rm := c.decodeModRM(2)
		return Instruction{Op: tag, Width: 2, Dst: rm, Src: Operand{Kind: OpReg16, Reg: reg}}
	case 2: // Gb, Eb
		reg, rm := c.decodeModRM(1)
		return Instruction{Op: tag, Width: 1, Dst: Operand{Kind: OpReg8, Reg: reg}, Src: rm}
	case 3: // Gv, Ev
		reg, rm := c.decodeModRM(2)
		return Instruction{Op: tag, Width: 2, Dst: Operand{Kind: OpReg16, Reg: reg}, Src: rm}
	case 4: // AL, Ib
		imm := c.fetchByte()
		return Instruction{Op: tag, Width: 1, Dst: Operand{Kind: OpReg8, Reg: 0}, Src: Operand{Kind: OpImmKind, Imm: uint16(imm)}}
	default: // AX, Iv
		imm := c.fetchWord()
		return Instruction{Op: tag, Width: 2, Dst: Operand{Kind: OpReg16, Reg: 0}, Src: Operand{Kind: OpImmKind, Imm: imm}}
	}
}

func (c *CPU) decodeMOVEbGb(width byte, toReg bool) Instruction {
	reg, rm := c.decodeModRM(width)
	regKind := OpReg16
	if width == 1 {
		regKind = OpReg8
	}
	if toReg {
		return Instruction{Op: OpMOV, Width: width, Dst: Operand{Kind: regKind, Reg: reg}, Src: rm}
	}
	return Instruction{Op: OpMOV, Width: width, Dst: rm, Src: Operand{Kind: regKind, Reg: reg}}
}

func (c *CPU) decodeRMReg(tag Opcode, width byte) Instruction {
	reg, rm := c.decodeModRM(width)
	regKind := OpReg16
	if width == 1 {
		regKind = OpReg8
	}
	return Instruction{Op: tag, Width: width, Dst: rm, Src: Operand{Kind: regKind, Reg: reg}}
}

// grp1Tags maps a Grp1 ModR/M reg field to its ALU opcode.
var grp1Tags = [8]Opcode{OpADD, OpOR, OpADC, OpSBB, OpAND, OpSUB, OpXOR, OpCMP}

func (c *CPU) decodeGrp1(width byte, signExtendImm8 bool) Instruction {
	reg, rm := c.decodeModRM(width)
	var imm uint16
	if signExtendImm8 {
		imm = uint16(int16(int8(c.fetchByte())))
	} else if width == 1 {
		imm = uint16(c.fetchByte())
	} else {
		imm = c.fetchWord()
	}
	return Instruction{Op: grp1Tags[reg&7], Width: width, Dst: rm, Src: Operand{Kind: OpImmKind, Imm: imm}}
}

// grp2Tags maps a Grp2 ModR/M reg field to its shift/rotate opcode.
var grp2Tags = [8]Opcode{OpROL, OpROR, OpRCL, OpRCR, OpSHL, OpSHR, OpSHL, OpSAR}

func (c *CPU) decodeGrp2(width byte, immCount bool) Instruction {
	reg, rm := c.decodeModRM(width)
	count := c.fetchByte()
	return Instruction{Op: grp2Tags[reg&7], Width: width, Dst: rm, Src: Operand{Kind: OpImmKind, Imm: uint16(count)}}
}

func (c *CPU) decodeGrp2Fixed(width byte, count byte) Instruction {
	reg, rm := c.decodeModRM(width)
	return Instruction{Op: grp2Tags[reg&7], Width: width, Dst: rm, Src: Operand{Kind: OpImmKind, Imm: uint16(count)}}
}

func (c *CPU) decodeGrp2CL(width byte) Instruction {
	reg, rm := c.decodeModRM(width)
	return Instruction{Op: grp2Tags[reg&7], Width: width, Dst: rm, Src: Operand{Kind: OpReg8, Reg: 1}}
}

// grp3Tags maps a Grp3 ModR/M reg field to its opcode (0 and 1 are
// both TEST with an immediate).
var grp3Tags = [8]Opcode{OpTEST, OpTEST, OpNOT, OpNEG, OpMUL, OpIMUL, OpDIV, OpIDIV}

func (c *CPU) decodeGrp3(width byte) Instruction {
	reg, rm := c.decodeModRM(width)
	tag := grp3Tags[reg&7]
	if tag == OpTEST {
		var imm uint16
		if width == 1 {
			imm = uint16(c.fetchByte())
		} else {
			imm = c.fetchWord()
		}
		return Instruction{Op: OpTEST, Width: width, Dst: rm, Src: Operand{Kind: OpImmKind, Imm: imm}}
	}
	return Instruction{Op: tag, Width: width, Dst: rm}
}

// decodeGrp45 handles Grp4 (FE, byte INC/DEC) and Grp5 (FF, word
// INC/DEC/CALL/JMP/PUSH).
func (c *CPU) decodeGrp45(width byte) Instruction {
	reg, rm := c.decodeModRM(width)
	switch reg & 7 {
	case 0:
		return Instruction{Op: OpINC, Width: width, Dst: rm}
	case 1:
		return Instruction{Op: OpDEC, Width: width, Dst: rm}
	case 2:
		return Instruction{Op: OpCALLIND, Width: 2, Dst: rm}
	case 4:
		return Instruction{Op: OpJMPIND, Width: 2, Dst: rm}
	case 6:
		return Instruction{Op: OpPUSH, Width: 2, Src: rm}
	}
	return Instruction{Op: OpUndefined}
}

// decodeModRM fetches the ModR/M byte (and any displacement) and
// returns the reg field plus the fully resolved r/m operand.
func (c *CPU) decodeModRM(width byte) (byte, Operand) {
	modrm := c.fetchModRM()
	reg := (modrm >> 3) & 7
	mod := (modrm >> 6) & 3
	rm := modrm & 7

	if mod == 3 {
		if width == 1 {
			return reg, Operand{Kind: OpReg8, Reg: rm}
		}
		return reg, Operand{Kind: OpReg16, Reg: rm}
	}

	off, defSeg := c.effectiveAddress16(mod, rm)
	return reg, Operand{Kind: OpMem, Seg: c.segmentFor(defSeg), Off: off}
}

// decodeModRMLEA is decodeModRM's memory-only counterpart for LEA,
// which needs the raw offset without segment resolution (LEA loads an
// offset, not a segment:offset pair).
func (c *CPU) decodeModRMLEA() (byte, Operand) {
	modrm := c.fetchModRM()
	reg := (modrm >> 3) & 7
	mod := (modrm >> 6) & 3
	rm := modrm & 7
	off, _ := c.effectiveAddress16(mod, rm)
	return reg, Operand{Kind: OpImmKind, Imm: off}
}

// effectiveAddress16 implements the fixed 8086 16-bit-only addressing
// table: BX+SI, BX+DI, BP+SI, BP+DI, SI, DI, disp16-or-BP, BX. Returns
// the raw offset (before segment override) and the *default* segment
// index for that r/m combination (SS for the BP-based forms, DS
// otherwise), consuming any displacement bytes as it goes.
func (c *CPU) effectiveAddress16(mod, rm byte) (uint16, int) {
	var base uint16
	defSeg := SegDS

	switch rm {
	case 0:
		base = c.BX + c.SI
	case 1:
		base = c.BX + c.DI
	case 2:
		base = c.BP + c.SI
		defSeg = SegSS
	case 3:
		base = c.BP + c.DI
		defSeg = SegSS
	case 4:
		base = c.SI
	case 5:
		base = c.DI
	case 6:
		if mod == 0 {
			base = c.fetchWord()
		} else {
			base = c.BP
			defSeg = SegSS
		}
	case 7:
		base = c.BX
	}

	switch mod {
	case 1:
		disp := int8(c.fetchByte())
		base = uint16(int32(base) + int32(disp))
	case 2:
		disp := int16(c.fetchWord())
		base = uint16(int32(base) + int32(disp))
	}

	return base, defSeg
}

// fetchModRM fetches and caches the ModR/M byte for the current
// instruction so repeated field accessors don't re-consume it.
func (c *CPU) fetchModRM() byte {
	if !c.modrmLoaded {
		c.modrm = c.fetchByte()
		c.modrmLoaded = true
	}
	return c.modrm
}
