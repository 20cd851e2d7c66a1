// Package cmd implements nemet's cobra command tree.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	outputDir   string
	entrySymbol string
	logJSON     bool
	asLibrary   bool
)

var rootCmd = &cobra.Command{
	Use:   "nemet [path]",
	Short: "Nemet compiles a small statically-typed language to ELF64 objects",
	Long: `Nemet is a compiler for a small statically-typed language. It lowers
source directly to x86-64 machine code and emits a relocatable ELF64
object file, ready to be linked with a system linker.

Invoking nemet with a bare path is shorthand for "nemet build <path>".`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runBuild(args[0])
	},
}

// Execute runs the root command, exiting the process with status 1 on
// failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "o", "./build", "directory the object file is written into")
	rootCmd.PersistentFlags().StringVar(&entrySymbol, "entry", "_start", "name of the entry-point symbol")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "also emit a JSON log stream on stderr")
	rootCmd.PersistentFlags().BoolVar(&asLibrary, "library", false, "compile without an entry-point symbol")
}
