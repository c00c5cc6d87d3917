// Command trapmon-dbg is an interactive console for a running
// trapmon-server. It connects over TCP, waits for the initial halt
// status, then reads debugger commands line by line.
package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/trapmon-dev/trapmon/internal/cli"
	"github.com/trapmon-dev/trapmon/internal/host"
	"github.com/trapmon-dev/trapmon/internal/image"
	"github.com/trapmon-dev/trapmon/internal/machine"
	"github.com/trapmon-dev/trapmon/internal/symbols"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version information")
		jsonOutput  = flag.Bool("json", false, "output version in JSON format")
		addr        = flag.String("addr", "127.0.0.1:9021", "debug server address")
		imagePath   = flag.String("image", "", "image manifest for symbol names")
		evalStr     = flag.String("eval", "", "run one command and exit")
		noPrompt    = flag.Bool("no-prompt", false, "disable interactive prompt")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Interactive console for a trapmon debug server.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCOMMANDS:\n")
		fmt.Fprintf(os.Stderr, "  regs                   Read all registers\n")
		fmt.Fprintf(os.Stderr, "  reg <r> [value]        Read or write one register\n")
		fmt.Fprintf(os.Stderr, "  read <addr>,<len>      Read data from memory\n")
		fmt.Fprintf(os.Stderr, "  write <addr>,<hex>     Write data to memory\n")
		fmt.Fprintf(os.Stderr, "  break <addr|symbol>    Set the breakpoint\n")
		fmt.Fprintf(os.Stderr, "  clear <addr|symbol>    Clear the breakpoint\n")
		fmt.Fprintf(os.Stderr, "  status                 Query the halt status\n")
		fmt.Fprintf(os.Stderr, "  step [n]               Single step, or step n words\n")
		fmt.Fprintf(os.Stderr, "  cont                   Continue until the next halt\n")
		fmt.Fprintf(os.Stderr, "  quit                   Exit the console\n")
	}

	flag.Parse()

	if *showVersion {
		cli.PrintVersion("trapmon-dbg", *jsonOutput)
		os.Exit(0)
	}

	var table *symbols.Table
	if *imagePath != "" {
		man, err := image.Load(*imagePath)
		if err != nil {
			cli.ExitWithError("load image %s: %v", *imagePath, err)
		}
		table = man.Table()
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		cli.ExitWithError("connect %s: %v", *addr, err)
	}
	defer conn.Close()

	c := &console{
		client:  host.New(conn),
		table:   table,
		scanner: bufio.NewScanner(os.Stdin),
	}

	halt, err := c.client.WaitHalt()
	if err != nil {
		cli.ExitWithError("wait for halt: %v", err)
	}
	c.printHalt(halt)

	if *evalStr != "" {
		if line := strings.TrimSpace(*evalStr); line != "" {
			c.dispatch(line)
		}
		return
	}

	if !*noPrompt {
		info := cli.GetVersionInfo()
		fmt.Printf("trapmon debugger v%s\n", info.Version)
		fmt.Println("Type help for help, quit to exit")
	}
	c.run(*noPrompt)
}

type console struct {
	client  *host.Client
	table   *symbols.Table
	scanner *bufio.Scanner
}

func (c *console) run(noPrompt bool) {
	for {
		if !noPrompt {
			fmt.Print("(trapmon)> ")
		}

		if !c.scanner.Scan() {
			break
		}

		line := strings.TrimSpace(c.scanner.Text())
		if line == "" {
			continue
		}

		if c.dispatch(line) {
			break
		}
	}
}

// dispatch handles one command line and reports whether the console
// should exit.
func (c *console) dispatch(line string) bool {
	parts := strings.Fields(line)
	arg := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))

	switch parts[0] {
	case "help", "h":
		c.printHelp()
	case "quit", "q", "exit":
		return true
	case "regs":
		c.showRegs()
	case "reg":
		c.regCmd(parts[1:])
	case "read", "mem":
		c.readCmd(arg)
	case "write":
		c.writeCmd(arg)
	case "break", "setbrk":
		c.breakCmd(arg, true)
	case "clear", "clrbrk":
		c.breakCmd(arg, false)
	case "status":
		st, err := c.client.Status()
		if err != nil {
			return c.sessionLost(err)
		}
		fmt.Println("status:", st)
	case "step", "s":
		c.stepCmd(parts[1:])
	case "cont", "run":
		st, err := c.client.Continue()
		if err != nil {
			return c.sessionLost(err)
		}
		c.printHalt(st)
	default:
		fmt.Printf("Unknown command: %s\n", parts[0])
		fmt.Println("Type help for available commands")
	}

	return false
}

func (c *console) printHelp() {
	fmt.Println("Debugger commands:")
	fmt.Println("  help, h                Show this help")
	fmt.Println("  regs                   Read all registers")
	fmt.Println("  reg <r> [value]        Read or write one register")
	fmt.Println("  read <addr>,<len>      Read data from memory")
	fmt.Println("  write <addr>,<hex>     Write data to memory")
	fmt.Println("  break <addr|symbol>    Set the breakpoint")
	fmt.Println("  clear <addr|symbol>    Clear the breakpoint")
	fmt.Println("  status                 Query the halt status")
	fmt.Println("  step [n]               Single step, or step n words")
	fmt.Println("  cont, run              Continue until the next halt")
	fmt.Println("  quit, q, exit          Exit the console")
}

// printHalt reports a halt status, with the halt location when symbols
// are loaded.
func (c *console) printHalt(status string) {
	fmt.Println("halted:", status)
	if c.table == nil {
		return
	}
	if pc, err := c.client.ReadRegister(machine.RegPC); err == nil {
		fmt.Println("    at", c.table.Name(pc))
	}
}

func (c *console) sessionLost(err error) bool {
	fmt.Printf("Session ended: %v\n", err)
	return true
}

func (c *console) showRegs() {
	regs, err := c.client.ReadRegisters()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	for i, name := range machine.RegisterNames {
		fmt.Printf("%3s = %016x", name, regs[i])
		if i == machine.RegPC && c.table != nil {
			fmt.Printf("  %s", c.table.Name(regs[i]))
		}
		fmt.Println()
	}
}

func (c *console) regCmd(args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: reg <r> [value]")
		return
	}
	idx := regIndex(args[0])
	if idx < 0 {
		fmt.Printf("No such register: %s\n", args[0])
		return
	}
	if len(args) == 1 {
		v, err := c.client.ReadRegister(idx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("%s = %016x\n", machine.RegisterNames[idx], v)
		return
	}
	v, err := strconv.ParseUint(args[1], 0, 64)
	if err != nil {
		fmt.Printf("Bad value: %s\n", args[1])
		return
	}
	if err := c.client.WriteRegister(idx, v); err != nil {
		fmt.Printf("Error: %v\n", err)
	}
}

func (c *console) readCmd(arg string) {
	x := strings.SplitN(arg, ",", 2)
	if len(x) != 2 {
		fmt.Println("Usage: read <addr>,<len>")
		return
	}
	addr, err1 := strconv.ParseUint(strings.TrimSpace(x[0]), 0, 64)
	length, err2 := strconv.ParseUint(strings.TrimSpace(x[1]), 0, 64)
	if err1 != nil || err2 != nil {
		fmt.Println("Usage: read <addr>,<len>")
		return
	}
	data, err := c.client.ReadMemory(addr, int(length))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Data @ 0x%016x: %x\n", addr, data)
}

func (c *console) writeCmd(arg string) {
	x := strings.SplitN(arg, ",", 2)
	if len(x) != 2 {
		fmt.Println("Usage: write <addr>,<hex>")
		return
	}
	addr, err := strconv.ParseUint(strings.TrimSpace(x[0]), 0, 64)
	if err != nil {
		fmt.Println("Usage: write <addr>,<hex>")
		return
	}
	data, err := hex.DecodeString(strings.TrimSpace(x[1]))
	if err != nil {
		fmt.Printf("Bad hex data: %v\n", err)
		return
	}
	if err := c.client.WriteMemory(addr, data); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Wrote %d bytes @ 0x%016x\n", len(data), addr)
}

func (c *console) breakCmd(arg string, set bool) {
	if arg == "" {
		fmt.Println("Usage: break <addr|symbol>")
		return
	}
	addr, ok := c.resolve(arg)
	if !ok {
		fmt.Printf("Bad address: %s\n", arg)
		return
	}
	var err error
	if set {
		err = c.client.SetBreakpoint(addr)
	} else {
		err = c.client.ClearBreakpoint(addr)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if set {
		fmt.Printf("Breakpoint set @ 0x%016x\n", addr)
	} else {
		fmt.Printf("Breakpoint cleared @ 0x%016x\n", addr)
	}
}

func (c *console) stepCmd(args []string) {
	n := uint64(1)
	if len(args) > 0 {
		v, err := strconv.ParseUint(args[0], 0, 64)
		if err != nil {
			fmt.Printf("Bad step count: %s\n", args[0])
			return
		}
		n = v
	}
	st, err := c.client.Step(n)
	if err != nil {
		fmt.Printf("Session ended: %v\n", err)
		return
	}
	c.printHalt(st)
}

// resolve parses arg as a number, falling back to symbol lookup when an
// image manifest was loaded.
func (c *console) resolve(arg string) (uint64, bool) {
	if v, err := strconv.ParseUint(arg, 0, 64); err == nil {
		return v, true
	}
	if c.table != nil {
		if addr, ok := c.table.Addr(arg); ok {
			return addr, true
		}
	}
	return 0, false
}

// regIndex resolves a register name or bare index to its wire index.
func regIndex(s string) int {
	for i, name := range machine.RegisterNames {
		if s == name {
			return i
		}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n < machine.NumRegs {
		return n
	}
	return -1
}
