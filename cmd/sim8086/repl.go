package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/coresim/sim8086/internal/cpu"
	"github.com/coresim/sim8086/internal/debug"
	"github.com/coresim/sim8086/internal/host"
)

// runREPL drives the interactive debug console: the controlling
// terminal is put into raw mode with term.MakeRaw so single keypresses
// (space=step, c=continue, q=quit) act immediately with no Enter
// needed, the same control scheme aryanA101a-lulu's io.go hand-rolls
// with termios. Commands that take an argument (b, x, w, m) drop back
// to cooked mode for one line of input, then return to raw.
func runREPL(s *host.Session) error {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("repl: terminal does not support raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	in := bufio.NewReader(os.Stdin)
	printHelp()
	printStatus(s)

	for {
		b, err := in.ReadByte()
		if err != nil {
			return err
		}
		switch b {
		case ' ':
			stepOnce(s)
		case 'c':
			runToNextBreak(s)
		case 'q', 3: // q, or Ctrl-C
			fmt.Fprint(os.Stdout, "\r\n")
			return nil
		case 'r':
			printRegisters(s)
		case 'd':
			printDisassembly(s, 8)
		case 'b':
			addBreakpointInteractive(s, fd, oldState, in)
		case 'x':
			removeBreakpointInteractive(s, fd, oldState, in)
		case 'l':
			listBreakpoints(s)
		case 'w':
			addWatchpointInteractive(s, fd, oldState, in)
		case 'm':
			dumpMemoryInteractive(s, fd, oldState, in)
		case '?':
			printHelp()
		default:
			// unrecognised key, ignore
		}
		if s.State() == cpu.StateHalted || s.State() == cpu.StateFaulted {
			printStatus(s)
			fmt.Fprint(os.Stdout, "\r\n[press q to quit, or reload to run again]\r\n")
		}
	}
}

func printHelp() {
	fmt.Fprint(os.Stdout,
		"sim8086 debug console\r\n"+
			"  space  step one instruction      c  run to next breakpoint\r\n"+
			"  r      show registers/flags      d  disassemble next 8\r\n"+
			"  b      set breakpoint            x  clear breakpoint\r\n"+
			"  w      set watchpoint            l  list breakpoints\r\n"+
			"  m      dump memory                ?  this help\r\n"+
			"  q      quit\r\n\r\n")
}

func printStatus(s *host.Session) {
	regs := s.Registers()
	fmt.Fprintf(os.Stdout, "\r\nstate=%v  CS:IP=%04X:%04X  next: %s\r\n",
		s.State(), regs.CS, regs.IP, nextInstruction(s))
}

func nextInstruction(s *host.Session) string {
	lines := s.Disassemble(cpu.Phys(s.Registers().CS, s.Registers().IP), 1)
	if len(lines) == 0 {
		return "?"
	}
	return lines[0].Mnemonic
}

func stepOnce(s *host.Session) {
	if err := s.Step(); err != nil {
		fmt.Fprintf(os.Stdout, "\r\nfault: %v\r\n", err)
		return
	}
	checkWatchpoints(s)
	printStatus(s)
}

func runToNextBreak(s *host.Session) {
	n, err := s.RunToBreakpoint()
	if err != nil {
		fmt.Fprintf(os.Stdout, "\r\nfault: %v\r\n", err)
		return
	}
	checkWatchpoints(s)
	fmt.Fprintf(os.Stdout, "\r\nran %d instructions\r\n", n)
	printStatus(s)
}

func checkWatchpoints(s *host.Session) {
	for _, addr := range s.Bps.CheckWatchpoints(s.Mem) {
		fmt.Fprintf(os.Stdout, "\r\nwatchpoint fired at 0x%05X\r\n", addr)
	}
}

func printRegisters(s *host.Session) {
	c := s.CPU
	fmt.Fprint(os.Stdout, "\r\n"+strings.ReplaceAll(debug.FormatRegisters(c), "\n", "\r\n")+"\r\n")
	fmt.Fprintf(os.Stdout, "flags: %s\r\n", debug.FormatFlags(c))
}

func printDisassembly(s *host.Session, count int) {
	regs := s.Registers()
	lines := s.Disassemble(cpu.Phys(regs.CS, regs.IP), count)
	fmt.Fprint(os.Stdout, "\r\n")
	for _, l := range lines {
		marker := "  "
		if l.Addr == cpu.Phys(regs.CS, regs.IP) {
			marker = "->"
		}
		fmt.Fprintf(os.Stdout, "%s %s\r\n", marker, debug.FormatLine(l))
	}
}

func listBreakpoints(s *host.Session) {
	fmt.Fprint(os.Stdout, "\r\nbreakpoints:\r\n")
	for _, bp := range s.Bps.List() {
		fmt.Fprintf(os.Stdout, "  %s\r\n", debug.Describe(bp))
	}
	fmt.Fprint(os.Stdout, "watchpoints:\r\n")
	for _, wp := range s.Bps.ListWatchpoints() {
		fmt.Fprintf(os.Stdout, "  0x%05X (last=%02X)\r\n", wp.Addr, wp.Last)
	}
}

// readLineCooked restores cooked mode for exactly one line of input,
// then re-enters raw mode before returning, so a multi-character
// address or condition can be typed with normal terminal echo and
// backspace handling.
func readLineCooked(fd int, oldState *term.State, in *bufio.Reader, prompt string) (string, error) {
	if err := term.Restore(fd, oldState); err != nil {
		return "", err
	}
	fmt.Fprint(os.Stdout, "\r\n"+prompt)
	line, err := in.ReadString('\n')
	if _, rawErr := term.MakeRaw(fd); rawErr != nil {
		return "", rawErr
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func parseHexAddr(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	return uint32(v), err
}

func addBreakpointInteractive(s *host.Session, fd int, oldState *term.State, in *bufio.Reader) {
	line, err := readLineCooked(fd, oldState, in, "breakpoint address [if <lua expr>]: ")
	if err != nil {
		return
	}
	parts := strings.SplitN(line, " if ", 2)
	addr, err := parseHexAddr(strings.TrimSpace(parts[0]))
	if err != nil {
		fmt.Fprintf(os.Stdout, "\r\nbad address: %v\r\n", err)
		return
	}
	if len(parts) == 2 {
		if err := s.AddConditionalBreakpoint(addr, strings.TrimSpace(parts[1])); err != nil {
			fmt.Fprintf(os.Stdout, "\r\nbad condition: %v\r\n", err)
			return
		}
	} else {
		s.AddBreakpoint(addr)
	}
	fmt.Fprintf(os.Stdout, "\r\nbreakpoint set at 0x%05X\r\n", addr)
}

func removeBreakpointInteractive(s *host.Session, fd int, oldState *term.State, in *bufio.Reader) {
	line, err := readLineCooked(fd, oldState, in, "clear breakpoint address: ")
	if err != nil {
		return
	}
	addr, err := parseHexAddr(line)
	if err != nil {
		fmt.Fprintf(os.Stdout, "\r\nbad address: %v\r\n", err)
		return
	}
	s.RemoveBreakpoint(addr)
	fmt.Fprintf(os.Stdout, "\r\nbreakpoint at 0x%05X cleared\r\n", addr)
}

func addWatchpointInteractive(s *host.Session, fd int, oldState *term.State, in *bufio.Reader) {
	line, err := readLineCooked(fd, oldState, in, "watchpoint address: ")
	if err != nil {
		return
	}
	addr, err := parseHexAddr(line)
	if err != nil {
		fmt.Fprintf(os.Stdout, "\r\nbad address: %v\r\n", err)
		return
	}
	s.Bps.SetWatchpoint(s.Mem, addr)
	fmt.Fprintf(os.Stdout, "\r\nwatchpoint set at 0x%05X\r\n", addr)
}

func dumpMemoryInteractive(s *host.Session, fd int, oldState *term.State, in *bufio.Reader) {
	line, err := readLineCooked(fd, oldState, in, "dump address length: ")
	if err != nil {
		return
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		fmt.Fprint(os.Stdout, "\r\nusage: <addr> <len>\r\n")
		return
	}
	addr, err := parseHexAddr(fields[0])
	if err != nil {
		fmt.Fprintf(os.Stdout, "\r\nbad address: %v\r\n", err)
		return
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n <= 0 {
		fmt.Fprint(os.Stdout, "\r\nbad length\r\n")
		return
	}
	fmt.Fprint(os.Stdout, "\r\n"+strings.ReplaceAll(debug.FormatMemory(s.Mem, addr, n), "\n", "\r\n")+"\r\n")
}
