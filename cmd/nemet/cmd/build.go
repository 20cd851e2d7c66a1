package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mahanfr/nmet/internal/compiler"
	"github.com/mahanfr/nmet/internal/config"
	"github.com/mahanfr/nmet/internal/diag"
	"github.com/mahanfr/nmet/internal/nlog"
	"github.com/mahanfr/nmet/internal/parser"
)

var buildCmd = &cobra.Command{
	Use:   "build <path>",
	Short: "Compile an Nmet source file into a relocatable ELF64 object",
	Long: `Compile an Nmet source file into a relocatable ELF64 object.

The output is written to <output-dir>/<basename>.o, where basename is
the source file's name with its extension stripped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild(args[0])
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

// runBuild drives the full pipeline: read, parse (lexing included),
// compile, write. The parse, codegen and elf-write stages each report
// their wall-clock cost through nlog.Phase, followed by a total.
func runBuild(path string) error {
	cfg := config.Default(path)
	cfg.OutputDir = outputDir
	cfg.EntrySymbol = entrySymbol
	cfg.LogJSON = logJSON
	cfg.AsLibrary = asLibrary

	logger := nlog.New(os.Stderr, cfg.LogJSON)
	reporter := diag.NewReporter(os.Stderr)

	src, err := os.ReadFile(cfg.SourcePath)
	if err != nil {
		d := diag.Diagnostic{Class: diag.IO, File: cfg.SourcePath, Message: err.Error()}
		reporter.Report(d)
		return d
	}

	t0 := time.Now()
	p, err := parser.Parse(cfg.SourcePath, string(src))
	nlog.Phase(logger, "parse", time.Since(t0).Milliseconds())
	if err != nil {
		d := diag.Diagnostic{Class: diag.User, Message: err.Error()}
		reporter.Report(d)
		return d
	}

	t1 := time.Now()
	comp := compiler.New(cfg, reporter)
	obj, err := comp.Compile(p)
	nlog.Phase(logger, "codegen", time.Since(t1).Milliseconds())
	if err != nil {
		if d, ok := err.(diag.Diagnostic); ok {
			if d.File == "" {
				d.File = cfg.SourcePath
			}
			reporter.Report(d)
			return d
		}
		d := diag.Diagnostic{Class: diag.Internal, File: cfg.SourcePath, Message: err.Error()}
		reporter.Report(d)
		return d
	}

	t2 := time.Now()
	out, err := obj.Write()
	nlog.Phase(logger, "elf-write", time.Since(t2).Milliseconds())
	if err != nil {
		d := diag.Diagnostic{Class: diag.Internal, File: cfg.SourcePath, Message: err.Error()}
		reporter.Report(d)
		return d
	}

	outPath := cfg.OutputPath()
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		d := diag.Diagnostic{Class: diag.IO, File: outPath, Message: err.Error()}
		reporter.Report(d)
		return d
	}
	if err := os.WriteFile(outPath, out, 0644); err != nil {
		d := diag.Diagnostic{Class: diag.IO, File: outPath, Message: err.Error()}
		reporter.Report(d)
		return d
	}

	nlog.Phase(logger, "total", time.Since(t0).Milliseconds(), "output", outPath)
	fmt.Fprintf(os.Stdout, "wrote %s\n", outPath)
	return nil
}
