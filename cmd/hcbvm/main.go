package main

import (
	"fmt"
	"io"
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/spf13/cobra"

	"hcbvm/hcb"
	"hcbvm/hostdemo"
	"hcbvm/internal/consolelog"
)

var encodingFlag string
var traceFlag bool
var verboseFlag bool

func parseEncoding(s string) (hcb.TextEncoding, error) {
	switch s {
	case "shiftjis", "":
		return hcb.EncodingShiftJIS, nil
	case "utf8":
		return hcb.EncodingUTF8, nil
	case "latin1":
		return hcb.EncodingLatin1, nil
	default:
		return 0, fmt.Errorf("unknown encoding %q (want shiftjis, utf8, or latin1)", s)
	}
}

// openReader opens path for reading, memory-mapping regular files and
// falling back to a plain in-memory read for anything mmap can't handle
// (stdin, pipes). The returned closer must be called once the Reader built
// over the result is no longer needed.
func openReader(path string, enc hcb.TextEncoding) (*hcb.Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	if info, statErr := f.Stat(); statErr == nil && info.Mode().IsRegular() {
		data, mmapErr := mmap.Map(f, mmap.RDONLY, 0)
		if mmapErr == nil {
			return hcb.NewByteReader([]byte(data), enc), func() error {
				_ = data.Unmap()
				return f.Close()
			}, nil
		}
	}

	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return nil, nil, err
	}
	return hcb.NewByteReader(data, enc), func() error { return nil }, nil
}

func runCmd(cmd *cobra.Command, args []string) error {
	enc, err := parseEncoding(encodingFlag)
	if err != nil {
		return err
	}

	reader, closeFn, err := openReader(args[0], enc)
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	defer closeFn()

	meta, err := hcb.ParseMetadata(reader)
	if err != nil {
		return fmt.Errorf("parsing metadata: %w", err)
	}

	level := consolelog.LevelInfo
	if verboseFlag || traceFlag {
		level = consolelog.LevelDebug
	}
	log := consolelog.NewStderr(level)

	resolver := hcb.NewSyscallResolver()
	host := hostdemo.New(log)
	if err := resolver.RegisterReflective(host); err != nil {
		return fmt.Errorf("registering host syscalls: %w", err)
	}

	ctx := hcb.NewScriptContext(reader, meta, resolver)
	if traceFlag {
		ctx.SetTracer(consolelog.NewTracer(log))
	}

	log.Infof("running %q (entry=0x%x globals=%d)", meta.GameTitle, meta.EntryPoint, meta.GlobalCount)

	if err := ctx.Execute(); err != nil {
		log.Errorf("%v", err)
		fmt.Fprintln(os.Stderr, consolelog.DumpState(ctx))
		return err
	}

	if rv, ok := ctx.ReturnValue(); ok {
		fmt.Printf("return value: %s\n", rv)
	} else {
		fmt.Println("return value: <none>")
	}
	return nil
}

func disasmCmd(cmd *cobra.Command, args []string) error {
	enc, err := parseEncoding(encodingFlag)
	if err != nil {
		return err
	}

	reader, closeFn, err := openReader(args[0], enc)
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	defer closeFn()

	meta, err := hcb.ParseMetadata(reader)
	if err != nil {
		return fmt.Errorf("parsing metadata: %w", err)
	}

	instructions, err := hcb.Disassemble(reader, meta.CodeRegionEnd())
	if err != nil {
		return fmt.Errorf("disassembling: %w", err)
	}

	hcb.FormatListing(os.Stdout, instructions, meta)
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "hcbvm",
		Short: "Run and inspect HCB visual-novel bytecode scripts",
	}
	rootCmd.PersistentFlags().StringVarP(&encodingFlag, "encoding", "e", "shiftjis", "string encoding: shiftjis, utf8, or latin1")

	runSub := &cobra.Command{
		Use:   "run <file.hcb>",
		Short: "Execute a script to completion",
		Args:  cobra.ExactArgs(1),
		RunE:  runCmd,
	}
	runSub.Flags().BoolVar(&traceFlag, "trace", false, "log every executed instruction")
	runSub.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug-level logging")

	disasmSub := &cobra.Command{
		Use:   "disasm <file.hcb>",
		Short: "List the decoded code region",
		Args:  cobra.ExactArgs(1),
		RunE:  disasmCmd,
	}

	rootCmd.AddCommand(runSub, disasmSub)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
