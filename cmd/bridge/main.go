package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/wippyai/bridge-runtime/bridge"
	"github.com/wippyai/bridge-runtime/config"
)

func main() {
	var (
		libPath     = flag.String("lib", "", "Path to a native shared library")
		selector    = flag.String("engine", "lua", "Script engine: lua, wasm, quickjs, node, v8")
		scriptPath  = flag.String("script", "", "Path to a script or wasm module")
		funcName    = flag.String("func", "", "Function to call")
		sigs        = flag.String("sig", "", "WIT function signatures, inline or @file")
		configPath  = flag.String("config", "", "TOML config file")
		list        = flag.Bool("list", false, "List callable functions and exit")
		tagged      = flag.Bool("json", false, "Print the result in tagged JSON form")
		verbose     = flag.Bool("v", false, "Enable logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if (*libPath == "") == (*scriptPath == "") {
		fmt.Fprintln(os.Stderr, "Usage: bridge -lib <lib.so> -func name [args...]")
		fmt.Fprintln(os.Stderr, "       bridge -engine lua -script <file.lua> -func name [args...]")
		fmt.Fprintln(os.Stderr, "       bridge -script <file> -list")
		fmt.Fprintln(os.Stderr, "       bridge -script <file> -i  (interactive mode)")
		fmt.Fprintln(os.Stderr, "Arguments are parsed as JSON, falling back to plain strings.")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		cfg.EnableLogging = true
	}

	opts := targetOptions{
		libPath:    *libPath,
		selector:   *selector,
		scriptPath: *scriptPath,
		signatures: *sigs,
	}

	if *interactive {
		if err := runInteractive(cfg, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, opts, *funcName, flag.Args(), *list, *tagged); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, opts targetOptions, funcName string, rawArgs []string, listOnly, tagged bool) error {
	ctx := context.Background()

	b := bridge.New(bridge.WithConfig(cfg))
	defer b.Close(ctx)

	tgt, err := openTarget(ctx, b, opts)
	if err != nil {
		return err
	}

	fmt.Printf("Module: %s (%s)\n", tgt.path, tgt.label)
	funcs := tgt.functions()
	if len(funcs) > 0 {
		fmt.Printf("\nCallable functions:\n")
		for _, f := range funcs {
			fmt.Printf("  %s\n", f.String())
		}
	}

	if listOnly {
		return nil
	}

	if funcName == "" {
		if len(funcs) != 1 {
			fmt.Printf("\nNo function specified. Use -func to pick one.\n")
			return nil
		}
		funcName = funcs[0].name
	}

	args := parseArgs(rawArgs)
	fmt.Printf("\nCalling %s with %v...\n", funcName, args)

	result, err := callWithRetry(ctx, cfg, tgt.mod.Func(funcName), args, func(err error, wait time.Duration) {
		fmt.Fprintf(os.Stderr, "retrying in %s: %v\n", wait.Round(time.Millisecond), err)
	})
	if err != nil {
		return fmt.Errorf("call %s: %w", funcName, err)
	}

	if tagged {
		out, err := formatTagged(b, result)
		if err != nil {
			return err
		}
		fmt.Printf("Result: %s\n", out)
		return nil
	}
	fmt.Printf("Result: %v\n", result)
	return nil
}
