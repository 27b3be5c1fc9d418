package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/lynxgpu/lynx"
	"github.com/lynxgpu/lynx/internal/instrument"
	"github.com/lynxgpu/lynx/internal/kernelfile"
	"github.com/lynxgpu/lynx/internal/version"
)

func main() {
	doMain(os.Stdout, os.Stderr, os.Exit)
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdOut, stdErr io.Writer, exit func(code int)) {
	flag.CommandLine.SetOutput(stdErr)

	var help bool
	flag.BoolVar(&help, "h", false, "print usage")

	flag.Parse()

	if help || flag.NArg() == 0 {
		printUsage(stdErr)
		exit(0)
	}

	subCmd := flag.Arg(0)
	switch subCmd {
	case "instrument":
		doInstrument(flag.Args()[1:], stdOut, stdErr, exit)
	case "optimize":
		doOptimize(flag.Args()[1:], stdOut, stdErr, exit)
	case "version":
		fmt.Fprintln(stdOut, version.GetLynxVersion())
		exit(0)
	default:
		fmt.Fprintln(stdErr, "invalid command")
		printUsage(stdErr)
		exit(1)
	}
}

func doInstrument(args []string, stdOut, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("instrument", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	var translationPath string
	flags.StringVar(&translationPath, "t", "", "path to the translation file (required)")

	var configPath string
	flags.StringVar(&configPath, "config", "", "path to a YAML config file")

	var envPath string
	flags.StringVar(&envPath, "env", "", "path to a dotenv file with LYNX_* variables")

	var scope string
	flags.StringVar(&scope, "scope", "", "register scope: pass or kernel")

	var probe bool
	flags.BoolVar(&probe, "probe", false, "insert the block index probe")

	var noOptimize bool
	flags.BoolVar(&noOptimize, "no-optimize", false, "do not optimize the translation")

	var outPath string
	flags.StringVar(&outPath, "o", "", "write the instrumented module to this file instead of STDOUT")

	var text bool
	flags.BoolVar(&text, "text", false, "print the instrumented kernels as text instead of YAML")

	_ = flags.Parse(args)

	if help {
		printInstrumentUsage(stdErr, flags)
		exit(0)
	}

	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing path to module file")
		printInstrumentUsage(stdErr, flags)
		exit(1)
	}
	if translationPath == "" {
		fmt.Fprintln(stdErr, "missing translation file (-t)")
		printInstrumentUsage(stdErr, flags)
		exit(1)
	}

	c := lynx.NewPassConfig()
	if configPath != "" {
		var err error
		if c, err = lynx.LoadConfigFile(configPath); err != nil {
			fmt.Fprintf(stdErr, "error reading config: %v\n", err)
			exit(1)
		}
	}

	lookup := os.LookupEnv
	if envPath != "" {
		env, err := godotenv.Read(envPath)
		if err != nil {
			fmt.Fprintf(stdErr, "error reading env file: %v\n", err)
			exit(1)
		}
		lookup = func(key string) (string, bool) {
			if v, ok := env[key]; ok {
				return v, true
			}
			return os.LookupEnv(key)
		}
	}
	c, err := lynx.ApplyEnv(c, lookup)
	if err != nil {
		fmt.Fprintf(stdErr, "invalid environment: %v\n", err)
		exit(1)
	}

	// Flags given explicitly win over the config file and the environment.
	var flagErr error
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "scope":
			s, err := instrument.ParseRegisterScope(scope)
			if err != nil {
				flagErr = err
				return
			}
			c = c.WithRegisterScope(s)
		case "probe":
			c = c.WithBlockIndexProbe(probe)
		case "no-optimize":
			c = c.WithOptimizer(!noOptimize)
		}
	})
	if flagErr != nil {
		fmt.Fprintf(stdErr, "invalid flag: %v\n", flagErr)
		exit(1)
	}
	c = c.WithLogOutput(stdErr)

	translation, err := kernelfile.ReadTranslation(translationPath)
	if err != nil {
		fmt.Fprintf(stdErr, "error reading translation: %v\n", err)
		exit(1)
	}
	m, err := kernelfile.ReadModule(flags.Arg(0))
	if err != nil {
		fmt.Fprintf(stdErr, "error reading module: %v\n", err)
		exit(1)
	}

	i := lynx.NewInstrumentor(translation, c)
	if err = i.InstrumentModule(context.Background(), m); err != nil {
		fmt.Fprintf(stdErr, "error instrumenting module: %v\n", err)
		exit(1)
	}

	switch {
	case outPath != "":
		err = kernelfile.WriteModule(outPath, m)
	case text:
		for _, k := range m.Kernels {
			fmt.Fprint(stdOut, k.Format())
		}
	default:
		err = kernelfile.EncodeModule(stdOut, m)
	}
	if err != nil {
		fmt.Fprintf(stdErr, "error writing module: %v\n", err)
		exit(1)
	}
	exit(0)
}

func doOptimize(args []string, stdOut, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("optimize", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	_ = flags.Parse(args)

	if help {
		printOptimizeUsage(stdErr, flags)
		exit(0)
	}

	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing path to translation file")
		printOptimizeUsage(stdErr, flags)
		exit(1)
	}

	translation, err := kernelfile.ReadTranslation(flags.Arg(0))
	if err != nil {
		fmt.Fprintf(stdErr, "error reading translation: %v\n", err)
		exit(1)
	}
	fmt.Fprint(stdOut, kernelfile.FormatStatements(instrument.Optimize(translation.Statements)))
	exit(0)
}

func printUsage(stdErr io.Writer) {
	fmt.Fprintln(stdErr, "lynx CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  lynx <command>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Commands:")
	fmt.Fprintln(stdErr, "  instrument\tSplices a translation into every kernel of a module")
	fmt.Fprintln(stdErr, "  optimize\tPrints the optimized statements of a translation")
	fmt.Fprintln(stdErr, "  version\tDisplays the version of lynx CLI")
}

func printInstrumentUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "lynx CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  lynx instrument <options> -t <path to translation file> <path to module file>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Environment:")
	for _, key := range []string{lynx.EnvRegisterScope, lynx.EnvBlockIndexProbe, lynx.EnvOptimize, lynx.EnvLogLevel} {
		fmt.Fprintln(stdErr, "  "+key)
	}
	fmt.Fprintf(stdErr, "  Log levels: %v\n", logrus.AllLevels)
}

func printOptimizeUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "lynx CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  lynx optimize <path to translation file>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}
