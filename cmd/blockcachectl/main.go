// blockcachectl is an interactive shell over a block cache opened on a
// file, grounded on calvinalkan-agent-task/cmd/sloty's flag+liner REPL
// shape: pflag for the startup options, peterh/liner for the command loop.
//
// Usage:
//
//	blockcachectl [options] <file>
//
// Options:
//
//	--config <path>        JSONC config file (default: cache.DefaultConfig())
//	--mem <bytes>           memory budget override
//	--block-size <bytes>    block size override
//	--write-through         use write-through instead of write-back
//	--async                 enable the asynchronous write backend
//	--writable              open the file read-write (default: read-only)
//	--dump-config           print the effective config as YAML and exit
//
// Commands (in REPL):
//
//	read <offset> <length>         Read and hex-dump a byte range
//	write <offset> <hex>            Write hex-encoded bytes at offset
//	flush                            Flush all dirty frames
//	stat                             Show source path and writable flag
//	help                             Show this help
//	exit / quit / q                  Flush (if writable), close, and exit
package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/pflag"

	"github.com/haldor/blockcache/internal/cache"
	"github.com/haldor/blockcache/internal/cacheio"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := pflag.NewFlagSet("blockcachectl", pflag.ContinueOnError)

	configPath := fs.String("config", "", "JSONC config file")
	mem := fs.Int64("mem", 0, "memory budget override, in bytes")
	blockSize := fs.Int("block-size", 0, "block size override, in bytes")
	writeThrough := fs.Bool("write-through", false, "use write-through instead of write-back")
	async := fs.Bool("async", false, "enable the asynchronous write backend")
	writable := fs.Bool("writable", false, "open the file read-write")
	dumpConfig := fs.Bool("dump-config", false, "print the effective config as YAML and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: blockcachectl [options] <file>\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg := cache.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = cacheio.LoadFile(*configPath)
		if err != nil {
			return err
		}
	}
	if *mem != 0 {
		cfg.Mem = *mem
	}
	if *blockSize != 0 {
		cfg.BlockSize = *blockSize
	}
	if *writeThrough {
		cfg.WritePolicy = cache.WriteThrough
	}
	cfg.AsyncWrite = cfg.AsyncWrite || *async

	if *dumpConfig {
		out, err := cacheio.DumpYAML(cfg)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}

	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("missing cache file path")
	}
	path := fs.Arg(0)

	src, err := cache.OpenFileSource(path, *writable)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}

	c, err := cache.New(cfg, src)
	if err != nil {
		return fmt.Errorf("constructing cache: %w", err)
	}

	repl := &repl{cache: c, path: path, writable: *writable}
	return repl.run()
}

type repl struct {
	cache    *cache.Cache
	path     string
	writable bool
	liner    *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".blockcachectl_history")
}

func (r *repl) run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("blockcachectl - %s (writable=%v)\n", r.path, r.writable)
	fmt.Println("Type 'help' for available commands.")

	for {
		line, err := r.liner.Prompt("blockcache> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			r.saveHistory()
			return r.cache.IntoSource()
		case "help", "?":
			r.printHelp()
		case "read":
			r.cmdRead(args)
		case "write":
			r.cmdWrite(args)
		case "flush":
			r.cmdFlush()
		case "stat":
			r.cmdStat()
		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()
	return r.cache.IntoSource()
}

func (r *repl) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *repl) completer(line string) []string {
	commands := []string{"read", "write", "flush", "stat", "help", "exit", "quit", "q"}
	var out []string
	lower := strings.ToLower(line)
	for _, c := range commands {
		if strings.HasPrefix(c, lower) {
			out = append(out, c)
		}
	}
	return out
}

func (r *repl) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  read <offset> <length>   Read and hex-dump a byte range")
	fmt.Println("  write <offset> <hex>     Write hex-encoded bytes at offset")
	fmt.Println("  flush                    Flush all dirty frames")
	fmt.Println("  stat                     Show source path and writable flag")
	fmt.Println("  help                     Show this help")
	fmt.Println("  exit / quit / q          Flush (if writable), close, and exit")
}

func (r *repl) cmdRead(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: read <offset> <length>")
		return
	}
	offset, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Printf("Error parsing offset: %v\n", err)
		return
	}
	length, err := strconv.Atoi(args[1])
	if err != nil || length < 0 {
		fmt.Println("Error: length must be a non-negative integer")
		return
	}

	buf := make([]byte, length)
	n, err := r.cache.Read(offset, buf)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("%d bytes:\n%s\n", n, hex.Dump(buf[:n]))
}

func (r *repl) cmdWrite(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: write <offset> <hex>")
		return
	}
	offset, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Printf("Error parsing offset: %v\n", err)
		return
	}
	data, err := hex.DecodeString(args[1])
	if err != nil {
		fmt.Printf("Error decoding hex: %v\n", err)
		return
	}
	n, err := r.cache.Write(offset, data)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("OK: wrote %d bytes at offset %d\n", n, offset)
}

func (r *repl) cmdFlush() {
	if err := r.cache.FlushDirty(); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("OK: flushed dirty frames")
}

func (r *repl) cmdStat() {
	fmt.Printf("Source: %s\n", r.path)
	fmt.Printf("Writable: %v\n", r.writable)
}
