// denatural CLI - assembles bytecode chunks and prints their disassembly
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/denatural/denatural/manifest"
	"github.com/denatural/denatural/pkg/asm"
	"github.com/denatural/denatural/pkg/bytecode"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// job is one resolved disassembly request.
type job struct {
	name   string
	format string
	output string
	load   func(c *bytecode.Chunk) error
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("denatural", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "Verbose output")
	format := fs.String("format", "", "Output format: text, json or cbor (default text)")
	name := fs.String("name", "", "Chunk label used in the disassembly")
	output := fs.String("o", "", "Write output to file instead of stdout")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: denatural [options] [path]\n\n")
		fmt.Fprintf(stderr, "Assembles a listing into a chunk and prints its disassembly.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  denatural                     # Disassemble the built-in OP_RETURN chunk\n")
		fmt.Fprintf(stderr, "  denatural prog.dasm           # Assemble and disassemble a listing\n")
		fmt.Fprintf(stderr, "  denatural ./prog              # Use ./prog/denatural.toml\n")
		fmt.Fprintf(stderr, "  denatural -format json prog.dasm\n")
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return 2
	}

	verbosity := 0
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)
	log := commonlog.GetLogger("denatural.cli")

	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	j, err := resolveJob(fs.Arg(0), wd)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if *name != "" {
		j.name = *name
	}
	if *format != "" {
		j.format = *format
	}
	if *output != "" {
		j.output = *output
	}
	if err := manifest.CheckFormat(j.format); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	c := bytecode.NewChunk()
	defer c.Free()
	if err := j.load(c); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	log.Infof("chunk %q: %d instructions in %d units, capacity %d, %d reallocations (instruction set has %d opcodes)",
		j.name, bytecode.InstructionCount(c), c.Count(), c.Capacity(), c.Reallocations(), bytecode.OpcodeCount())
	if log.AllowLevel(commonlog.Debug) {
		for line := range bytecode.DisassembleChunk(c, j.name) {
			log.Debug(line.Labeled())
		}
	}

	if j.output == "" {
		err = render(stdout, c, j.name, j.format)
	} else {
		err = renderFile(j.output, c, j.name, j.format)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if j.output != "" {
		log.Infof("wrote %s", j.output)
	}
	return 0
}

// resolveJob turns the optional path argument into a job. With no path the
// nearest denatural.toml at or above workDir is used, and failing that the
// built-in single-return chunk.
func resolveJob(path, workDir string) (*job, error) {
	if path == "" {
		m, err := manifest.FindAndLoad(workDir)
		if err != nil {
			return nil, err
		}
		if m != nil {
			return manifestJob(m), nil
		}
		return &job{
			name:   "test",
			format: manifest.FormatText,
			load: func(c *bytecode.Chunk) error {
				c.WriteOp(bytecode.OpReturn)
				return nil
			},
		}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		m, err := manifest.Load(path)
		if err != nil {
			return nil, err
		}
		return manifestJob(m), nil
	}
	if filepath.Base(path) == manifest.FileName {
		m, err := manifest.Load(filepath.Dir(path))
		if err != nil {
			return nil, err
		}
		return manifestJob(m), nil
	}

	return &job{
		name:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		format: manifest.FormatText,
		load: func(c *bytecode.Chunk) error {
			return assembleFile(path, c)
		},
	}, nil
}

func manifestJob(m *manifest.Manifest) *job {
	return &job{
		name:   m.Program.Name,
		format: m.Output.Format,
		output: m.OutputPath(),
		load: func(c *bytecode.Chunk) error {
			if src := m.SourcePath(); src != "" {
				return assembleFile(src, c)
			}
			return asm.AssembleLines(m.Program.Code, c)
		},
	}
}

func assembleFile(path string, c *bytecode.Chunk) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := asm.Assemble(f, c); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// renderFile writes the rendering to path. The file is only created once
// the format has been accepted, and a failed close is reported.
func renderFile(path string, c *bytecode.Chunk, name, format string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f, c, name, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func render(w io.Writer, c *bytecode.Chunk, name, format string) error {
	switch format {
	case manifest.FormatText:
		if err := bytecode.Fprint(w, c, name); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w, c)
		return err
	case manifest.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(bytecode.NewListing(c, name))
	case manifest.FormatCBOR:
		data, err := bytecode.NewListing(c, name).EncodeCBOR()
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
