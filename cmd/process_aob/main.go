package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"procmem/hexdump"
	"procmem/pattern"
	"procmem/process"
	"procmem/session"
)

func main() {
	targetFlag := flag.String("target", "", "Process ID or name to attach to")
	aobFlag := flag.String("aob", "", "Array of bytes to scan for (e.g., '48 8B 05 ?? ?? ?? ??')")
	moduleFlag := flag.String("module", "", "Scan only this module (use '.' for the main executable)")
	startFlag := flag.String("start", "0", "Lowest address of a process scan")
	endFlag := flag.String("end", "", "Highest address of a process scan (default: end of user space)")
	allFlag := flag.Bool("all", false, "Report every match instead of the first")
	maxdopFlag := flag.Int("maxdop", 1, "Regions scanned in parallel with -all")
	contextFlag := flag.Int("context", 32, "Bytes of context dumped around each match")
	disasmFlag := flag.Int("disasm", 0, "Instructions to disassemble at each match")
	syntaxFlag := flag.String("syntax", "intel", "Disassembly syntax: intel, gnu or go")
	rightsFlag := flag.String("rights", "", "Comma separated access rights (default: query-information,vm-operation,vm-read,vm-write)")
	flag.Parse()

	if *targetFlag == "" {
		fmt.Println("Error: --target is required")
		flag.Usage()
		os.Exit(1)
	}

	if *aobFlag == "" {
		fmt.Println("Error: --aob is required")
		flag.Usage()
		os.Exit(1)
	}

	p, err := pattern.FromHexString(*aobFlag)
	if err != nil {
		fmt.Printf("Error parsing AOB: %v\n", err)
		os.Exit(1)
	}

	opts := session.DefaultOptions()
	if *rightsFlag != "" {
		if opts.Rights, err = process.ParseAccessRights(splitList(*rightsFlag)...); err != nil {
			fmt.Printf("Error parsing rights: %v\n", err)
			os.Exit(1)
		}
	}

	s, err := session.OpenTarget(*targetFlag, opts)
	if err != nil {
		fmt.Printf("Error attaching to %s: %v\n", *targetFlag, err)
		os.Exit(1)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Attached to process %d (%d-bit)\n", s.Process.GetPID(), s.Process.PointerSize()*8)
	fmt.Printf("Scanning for pattern: %s\n", p)

	var matches []process.ProcessMemoryAddress
	switch {
	case *moduleFlag != "":
		name := *moduleFlag
		if name == "." {
			name = ""
		}
		var addr process.ProcessMemoryAddress
		var found bool
		addr, found, err = s.Scanner.Module(ctx, name, p)
		if found {
			matches = append(matches, addr)
		}
	default:
		start, end, perr := parseBounds(*startFlag, *endFlag, s.Process.MaxAddress())
		if perr != nil {
			fmt.Printf("Error parsing bounds: %v\n", perr)
			os.Exit(1)
		}
		matches, err = scanProcess(ctx, s, start, end, p, *allFlag, *maxdopFlag)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("Scan interrupted")
		} else {
			fmt.Printf("Error scanning memory: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Printf("Found %d matches:\n", len(matches))
	for _, match := range matches {
		report(s, match, p, *contextFlag, *disasmFlag, *syntaxFlag)
	}
}

func scanProcess(ctx context.Context, s *session.Session, start, end process.ProcessMemoryAddress, p pattern.BytePattern, all bool, maxdop int) ([]process.ProcessMemoryAddress, error) {
	if all {
		return s.Scanner.ProcessAllParallel(ctx, start, end, p, maxdop)
	}
	addr, found, err := s.Scanner.Process(ctx, start, end, p)
	if err != nil || !found {
		return nil, err
	}
	return []process.ProcessMemoryAddress{addr}, nil
}

func report(s *session.Session, match process.ProcessMemoryAddress, p pattern.BytePattern, around, disasm int, syntax string) {
	fmt.Printf("Match at %s (%s):\n", match, s.Modules.Symbolize(match))

	before := process.ProcessMemoryAddress(min(uint64(around), uint64(match)))
	start := match - before
	size := int(before) + p.Len() + around

	data, err := s.Memory.ReadRaw(start, size, nil)
	if err != nil {
		// the context may run off the region; fall back to the match itself
		start = match
		data, err = s.Memory.ReadRaw(match, p.Len(), nil)
	}
	if err != nil {
		fmt.Printf("  unable to read context: %v\n", err)
		return
	}

	options := hexdump.DefaultOptions()
	options.PointerSize = s.Process.PointerSize()
	fmt.Print(hexdump.Context(data, uint64(start), uint64(match), p.Len(), options))

	if disasm > 0 {
		code, err := s.Memory.ReadRaw(match, disasm*15, nil)
		if err != nil {
			code = data[match-start:]
		}
		lines, err := disassemble(code, uint64(match), s.Process.PointerSize()*8, syntax, disasm)
		for _, line := range lines {
			fmt.Println("  " + line)
		}
		if err != nil {
			fmt.Printf("  disassembly stopped: %v\n", err)
		}
	}
}

func parseBounds(startText, endText string, maxAddr process.ProcessMemoryAddress) (process.ProcessMemoryAddress, process.ProcessMemoryAddress, error) {
	start, err := strconv.ParseUint(startText, 0, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("start %q: %w", startText, err)
	}
	end := uint64(maxAddr)
	if endText != "" {
		if end, err = strconv.ParseUint(endText, 0, 64); err != nil {
			return 0, 0, fmt.Errorf("end %q: %w", endText, err)
		}
	}
	if end < start {
		return 0, 0, fmt.Errorf("end %#x below start %#x: %w", end, start, process.ErrInvalidArgument)
	}
	return process.ProcessMemoryAddress(start), process.ProcessMemoryAddress(end), nil
}
