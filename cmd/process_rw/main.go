package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"procmem/hexdump"
	"procmem/memory_access"
	"procmem/process"
	"procmem/process/memory_map"
	"procmem/search"
	"procmem/session"
	"procmem/textcodec"

	"github.com/Moonlight-Companies/gologger/coloransi"
)

const usage = `usage: process_rw -target <pid|name> [flags] <command> [args]

commands:
  modules                          list loaded modules
  regions [start] [end]            list committed regions
  read <kind> <addr>               read a scalar (int8..uint64, float32, float64)
  write <kind> <addr> <value>      write a scalar
  read-string <addr> [size]        read a string; size 0 reads to the terminator
  write-string <addr> <text>       write a string
  write-hex <addr> <hex>           write bytes, e.g. "90 90 C3"
  dump <addr> <size>               hexdump a range
  resolve <addr>                   resolve -offsets from addr
  find-path <addr> <kind> <value>  search pointer paths from addr to a value
  suspend | resume                 freeze or thaw the target

addresses are hex/decimal numbers or module+offset, e.g. game.exe+0x1A2B
`

func main() {
	targetFlag := flag.String("target", "", "Process ID or name to attach to")
	offsetsFlag := flag.String("offsets", "", "Pointer chain offsets applied to the address, e.g. '0x10,0x28,-0x8'")
	encodingFlag := flag.String("encoding", "utf-8", "String encoding (utf-8, utf-16le, utf-16be, utf-32le, windows-1252, ...)")
	nullFlag := flag.Bool("null", true, "Append a terminator when writing strings")
	rightsFlag := flag.String("rights", "", "Comma separated access rights")
	depthFlag := flag.Int("depth", 3, "Maximum pointer depth for find-path")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *targetFlag == "" || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	codec, err := textcodec.Lookup(*encodingFlag)
	if err != nil {
		fail(err)
	}
	offsets, err := memory_access.ParseOffsets(*offsetsFlag)
	if err != nil {
		fail(err)
	}

	opts := session.DefaultOptions()
	opts.Accessor = []memory_access.Option{
		memory_access.WithEncoding(codec),
		memory_access.WithNullTerminator(*nullFlag),
	}
	if *rightsFlag != "" {
		if opts.Rights, err = process.ParseAccessRights(strings.Split(*rightsFlag, ",")...); err != nil {
			fail(err)
		}
	}

	s, err := session.OpenTarget(*targetFlag, opts)
	if err != nil {
		fail(fmt.Errorf("attach to %s: %w", *targetFlag, err))
	}
	defer s.Close()

	if err := run(s, flag.Args(), offsets, *depthFlag); err != nil {
		s.Close()
		fail(err)
	}
}

func fail(err error) {
	fmt.Printf("Error: %v\n", err)
	os.Exit(1)
}

func need(args []string, n int) error {
	if len(args) < n {
		return fmt.Errorf("%s needs %d arguments: %w", args[0], n-1, process.ErrInvalidArgument)
	}
	return nil
}

func run(s *session.Session, args []string, offsets []int64, depth int) error {
	switch args[0] {
	case "modules":
		modules, err := s.Modules.List(process.ModulesAll)
		if err != nil {
			return err
		}
		table := hexdump.NewTable(
			hexdump.ColumnSpec{Header: "Base", FormatFunc: hexdump.Colorize(coloransi.Cyan)},
			hexdump.ColumnSpec{Header: "Size", AlignRight: true},
			hexdump.ColumnSpec{Header: "Entry"},
			hexdump.ColumnSpec{Header: "Name", FormatFunc: hexdump.Colorize(coloransi.Green)},
			hexdump.ColumnSpec{Header: "Path"},
		)
		for _, m := range modules {
			entry := ""
			if m.EntryPoint != 0 {
				entry = m.EntryPoint.String()
			}
			table.AddRow(m.BaseAddress.String(), fmt.Sprintf("0x%x", m.SizeOfImage), entry, m.Name, m.FilePath)
		}
		return table.Render(os.Stdout)

	case "regions":
		return listRegions(s, args[1:])

	case "read":
		if err := need(args, 3); err != nil {
			return err
		}
		kind, err := memory_access.ParseKind(args[1])
		if err != nil {
			return err
		}
		addr, err := parseAddress(s, args[2])
		if err != nil {
			return err
		}
		v, err := s.Memory.ReadScalar(addr, kind, offsets)
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil

	case "write":
		if err := need(args, 4); err != nil {
			return err
		}
		kind, err := memory_access.ParseKind(args[1])
		if err != nil {
			return err
		}
		addr, err := parseAddress(s, args[2])
		if err != nil {
			return err
		}
		v, err := memory_access.ParseValue(kind, args[3])
		if err != nil {
			return err
		}
		next, err := s.Memory.WriteScalar(addr, v, offsets)
		if err != nil {
			return err
		}
		fmt.Printf("wrote %s, next %s\n", v, next)
		return nil

	case "read-string":
		if err := need(args, 2); err != nil {
			return err
		}
		addr, err := parseAddress(s, args[1])
		if err != nil {
			return err
		}
		size := 0
		if len(args) > 2 {
			if size, err = strconv.Atoi(args[2]); err != nil {
				return err
			}
		}
		text, err := s.Memory.ReadString(addr, size, s.Memory.Config().Encoding, offsets)
		if err != nil {
			return err
		}
		fmt.Printf("%q\n", text)
		return nil

	case "write-string":
		if err := need(args, 3); err != nil {
			return err
		}
		addr, err := parseAddress(s, args[1])
		if err != nil {
			return err
		}
		return s.Memory.WriteText(addr, args[2], offsets)

	case "write-hex":
		if err := need(args, 3); err != nil {
			return err
		}
		addr, err := parseAddress(s, args[1])
		if err != nil {
			return err
		}
		next, err := s.Memory.WriteHex(addr, strings.Join(args[2:], " "), offsets)
		if err != nil {
			return err
		}
		fmt.Printf("next %s\n", next)
		return nil

	case "dump":
		if err := need(args, 3); err != nil {
			return err
		}
		addr, err := parseAddress(s, args[1])
		if err != nil {
			return err
		}
		size, err := strconv.ParseUint(args[2], 0, 32)
		if err != nil {
			return err
		}
		if addr, err = s.Memory.ResolvePointerChain(addr, offsets); err != nil {
			return err
		}
		data, err := s.Memory.ReadRaw(addr, int(size), nil)
		if err != nil {
			return err
		}
		options := hexdump.DefaultOptions()
		options.StartAddress = uint64(addr)
		options.PointerSize = s.Process.PointerSize()
		options.IsPointer = func(v uint64) bool {
			r, err := s.Process.QueryRegion(process.ProcessMemoryAddress(v))
			return v != 0 && err == nil && r.IsReadable()
		}
		fmt.Print(hexdump.Dump(data, options))
		return nil

	case "resolve":
		if err := need(args, 2); err != nil {
			return err
		}
		addr, err := parseAddress(s, args[1])
		if err != nil {
			return err
		}
		final, err := s.Memory.ResolvePointerChain(addr, offsets)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s)\n", final, s.Modules.Symbolize(final))
		return nil

	case "find-path":
		if err := need(args, 4); err != nil {
			return err
		}
		addr, err := parseAddress(s, args[1])
		if err != nil {
			return err
		}
		kind, err := memory_access.ParseKind(args[2])
		if err != nil {
			return err
		}
		v, err := memory_access.ParseValue(kind, args[3])
		if err != nil {
			return err
		}
		results, err := search.Search(context.Background(), s.Memory, addr,
			search.WithSearchForValue(v), search.WithMaxDepth(depth), search.WithMinAlignment(uint(kind.Size())))
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Println(r)
		}
		return nil

	case "suspend", "resume":
		c, ok := s.Process.(process.ProcessController)
		if !ok {
			return process.ErrNotSupported
		}
		op := c.Resume
		if args[0] == "suspend" {
			op = c.Suspend
		}
		if err := op(); err != nil {
			return err
		}
		if r, ok := s.Process.(process.StateReporter); ok {
			state, err := r.State()
			if err != nil {
				return err
			}
			fmt.Printf("state %s stopped=%v\n", state, state.IsStopped())
		}
		return nil
	}

	return fmt.Errorf("unknown command %q: %w", args[0], process.ErrInvalidArgument)
}

func listRegions(s *session.Session, args []string) error {
	start, end := uint64(0), uint64(s.Process.MaxAddress())
	var err error
	if len(args) > 0 {
		if start, err = strconv.ParseUint(args[0], 0, 64); err != nil {
			return err
		}
	}
	if len(args) > 1 {
		if end, err = strconv.ParseUint(args[1], 0, 64); err != nil {
			return err
		}
	}

	if r, ok := s.Process.(process.MemoryMapRefresher); ok {
		if err := r.UpdateMemoryMap(); err != nil {
			return err
		}
	}

	query := func(addr uint64) (memory_map.MemoryRegion, error) {
		return s.Process.QueryRegion(process.ProcessMemoryAddress(addr))
	}
	table := hexdump.NewTable(
		hexdump.ColumnSpec{Header: "Start", FormatFunc: hexdump.Colorize(coloransi.Cyan)},
		hexdump.ColumnSpec{Header: "End"},
		hexdump.ColumnSpec{Header: "Size", AlignRight: true},
		hexdump.ColumnSpec{Header: "Prot"},
		hexdump.ColumnSpec{Header: "Type"},
		hexdump.ColumnSpec{Header: "Path"},
	)
	for region, err := range memory_map.Regions(query, start, end) {
		if err != nil {
			return err
		}
		if !region.IsCommitted() {
			continue
		}
		table.AddRow(fmt.Sprintf("0x%x", region.BaseAddress), fmt.Sprintf("0x%x", region.End()),
			fmt.Sprintf("0x%x", region.Size), region.Protection.String(), region.Type.String(), region.Path)
	}
	return table.Render(os.Stdout)
}

// parseAddress accepts a number or module+offset.
func parseAddress(s *session.Session, text string) (process.ProcessMemoryAddress, error) {
	if v, err := strconv.ParseUint(text, 0, 64); err == nil {
		return process.ProcessMemoryAddress(v), nil
	}

	name, offText, hasOffset := strings.Cut(text, "+")
	base, _, err := s.Modules.ResolveBase(name)
	if err != nil {
		return 0, err
	}
	if !hasOffset {
		return base, nil
	}
	off, err := strconv.ParseUint(offText, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("offset %q: %w", offText, process.ErrInvalidArgument)
	}
	return base + process.ProcessMemoryAddress(off), nil
}
