// Command ccc is a thin cobra front door over compiler.Compile (§6): it
// only turns flags into compiler.Options and files into compiler.Source,
// leaving every real decision to the library.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cxxcore/ccc/compiler"
)

var (
	outputPath   string
	targetFlag   string
	dataModel    string
	defines      []string
	includePaths []string
	debugInfo    bool
	showTiming   bool
	debugFlag    bool
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "ccc [files...]",
		Short: "A freestanding C++ subset AOT compiler",
		Long:  "ccc compiles one or more preprocessed C++ translation units into a single ELF64 or COFF object file.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCompile,
	}

	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "a.o", "output object file path")
	rootCmd.Flags().StringVarP(&targetFlag, "target", "T", "linux", "target operating system: linux or windows")
	rootCmd.Flags().StringVar(&dataModel, "data-model", "lp64", "target data model: lp64 or llp64")
	rootCmd.Flags().StringArrayVarP(&defines, "define", "D", nil, "predefine a macro (preprocessor collaborator only; ignored by the core)")
	rootCmd.Flags().StringArrayVarP(&includePaths, "include", "I", nil, "add an include search path (preprocessor collaborator only; ignored by the core)")
	rootCmd.Flags().BoolVar(&debugInfo, "g", false, "emit debug line info")
	rootCmd.Flags().BoolVar(&showTiming, "time", false, "print compile timing")
	rootCmd.Flags().BoolVar(&debugFlag, "debug", false, "enable verbose compiler logging")

	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the compiler version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("ccc version 0.1.0")
	},
}

func runCompile(cmd *cobra.Command, args []string) error {
	opts, err := parseOptions()
	if err != nil {
		return err
	}

	sources := make([]compiler.Source, 0, len(args))
	for _, path := range args {
		text, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("reading %s: %w", path, readErr)
		}
		sources = append(sources, compiler.Source{Path: path, Text: text})
	}

	obj, bag, compileErr := compiler.Compile(sources, opts)
	for _, e := range bag.Errors() {
		fmt.Fprintln(os.Stderr, e)
	}
	if compileErr != nil {
		return compileErr
	}

	code := bag.ExitCode()
	if code != 0 {
		os.Exit(code)
	}

	if writeErr := os.WriteFile(opts.OutputPath, obj.Bytes, 0o644); writeErr != nil {
		return fmt.Errorf("writing %s: %w", opts.OutputPath, writeErr)
	}
	return nil
}

func parseOptions() (compiler.Options, error) {
	opts := compiler.Options{
		OutputPath:   outputPath,
		Defines:      defines,
		IncludePaths: includePaths,
		DebugInfo:    debugInfo,
		ShowTiming:   showTiming,
		Debug:        debugFlag,
	}

	switch targetFlag {
	case "linux":
		opts.TargetOS = compiler.Linux
	case "windows":
		opts.TargetOS = compiler.Windows
	default:
		return opts, fmt.Errorf("unknown target %q: expected linux or windows", targetFlag)
	}

	switch dataModel {
	case "lp64":
		opts.TargetDataModel = compiler.LP64
	case "llp64":
		opts.TargetDataModel = compiler.LLP64
	default:
		return opts, fmt.Errorf("unknown data model %q: expected lp64 or llp64", dataModel)
	}

	return opts, nil
}
