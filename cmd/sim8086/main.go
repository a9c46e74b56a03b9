// Command sim8086 assembles and runs 8086 assembly source, grounded on
// cmd/ie32to64/main.go's flag-parsed, fail-fast CLI shape: parse flags,
// call into the library, print results or a fatal error to stderr with
// a non-zero exit code.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/coresim/sim8086/internal/asm"
	"github.com/coresim/sim8086/internal/host"
)

func usage() {
	fmt.Fprintf(os.Stderr, "sim8086 - 8086 instruction-set simulator\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n  %s [flags] <program.asm>\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s hello.asm\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s -debug loop.asm\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s -stats -max 1000000 loop.asm\n", os.Args[0])
}

func main() {
	var (
		debugFlag = flag.Bool("debug", false, "drop into the interactive debug console instead of running to completion")
		listFlag  = flag.Bool("l", false, "print an assembly listing (address, bytes, source) and exit")
		statsFlag = flag.Bool("stats", false, "report instruction count and MIPS after the run")
		maxFlag   = flag.Int("max", 0, "maximum instructions to execute (0 = unbounded, stop at HLT/fault/breakpoint)")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}
	path := flag.Arg(0)

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sim8086: %v\n", err)
		os.Exit(1)
	}

	if *listFlag {
		prog, err := asm.AssembleWithListing(string(source))
		if err != nil {
			fmt.Fprintf(os.Stderr, "sim8086: assemble: %v\n", err)
			os.Exit(1)
		}
		for _, line := range prog.Listing {
			fmt.Println(line)
		}
		return
	}

	s := host.New()
	s.PerfEnabled = *statsFlag
	if err := s.AssembleAndLoad(string(source)); err != nil {
		fmt.Fprintf(os.Stderr, "sim8086: %v\n", err)
		os.Exit(1)
	}

	if *debugFlag {
		if err := runREPL(s); err != nil {
			fmt.Fprintf(os.Stderr, "sim8086: %v\n", err)
			os.Exit(1)
		}
		return
	}

	n, err := s.Run(*maxFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sim8086: fault: %v\n", err)
		os.Exit(1)
	}

	regs := s.Registers()
	fmt.Printf("executed %d instructions, state=%v\n", n, s.State())
	fmt.Printf("AX=%04X BX=%04X CX=%04X DX=%04X SP=%04X BP=%04X SI=%04X DI=%04X IP=%04X\n",
		regs.AX, regs.BX, regs.CX, regs.DX, regs.SP, regs.BP, regs.SI, regs.DI, regs.IP)

	if *statsFlag {
		fmt.Printf("instructions=%d mips=%.4f\n", s.InstructionCount, s.MIPS())
	}
}
