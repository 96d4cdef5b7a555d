// Command derkjs loads a compiled program image and runs it to
// completion (SPEC_FULL.md §6.4), matching the teacher's own cmd/paserati
// entry point in shape: a flag.FlagSet, a couple of file reads, then a
// single call into the runtime core.
package main

import (
	"flag"
	"fmt"
	"os"

	"derkjs/pkg/bytecode"
	"derkjs/pkg/config"
	"derkjs/pkg/diag"
	"derkjs/pkg/errors"
	"derkjs/pkg/natives"
	"derkjs/pkg/program"
	"derkjs/pkg/srcmap"
	"derkjs/pkg/vm"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("derkjs", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file overriding resource limits")
	threshold := fs.Int("threshold", 0, "override the GC threshold (0 = use config/default)")
	polyfillPath := fs.String("polyfill", "", "path to a JSON program image installed as a preload pass before the main program")
	mapPath := fs.String("sourcemap", "", "path to a V3 source map for the main program, used to enrich error reports")
	logLevel := fs.String("log", "info", "diagnostic log level: silent|error|warn|info|debug")

	if err := fs.Parse(args); err != nil {
		return 64 // command line usage error
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: derkjs [-config path.yaml] [-threshold N] [-polyfill path] <script-image>\n")
		return 64
	}
	scriptPath := fs.Arg(0)

	logger := diag.New(os.Stderr, diag.ParseLevel(*logLevel))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf("loading config: %s", err)
		return 70
	}
	if *threshold > 0 {
		cfg.GCThreshold = *threshold
	}

	scriptImg, err := readImage(scriptPath)
	if err != nil {
		logger.Errorf("reading script image: %s", err)
		return 70
	}

	v := vm.New(bytecode.NewProgram(), cfg.ToVMConfig())
	loader := program.New(program.NativeInstaller(natives.Install))

	var polyfillImg *bytecode.Image
	if *polyfillPath != "" {
		polyfillImg, err = readImage(*polyfillPath)
		if err != nil {
			logger.Errorf("reading polyfill image: %s", err)
			return 70
		}
	}

	if polyfillImg != nil {
		if _, err := loader.LoadImage(v, polyfillImg); err != nil {
			logger.Errorf("loading polyfill: %s", err)
			return 70
		}
	}
	prog, err := loader.LoadImage(v, scriptImg)
	if err != nil {
		logger.Errorf("loading script: %s", err)
		return 70
	}
	v.Program = prog

	var bridge *srcmap.Bridge
	if *mapPath != "" {
		mapData, err := os.ReadFile(*mapPath)
		if err != nil {
			logger.Errorf("reading source map: %s", err)
			return 70
		}
		bridge, err = srcmap.Load(mapData, prog.Sources)
		if err != nil {
			logger.Errorf("parsing source map: %s", err)
			return 70
		}
	}

	result, runErr := v.Run(prog.EntryFuncID)
	if runErr != nil {
		reportError(logger, bridge, runErr)
		return 1
	}
	logger.Debugf("result: %s", result.Inspect())
	return 0
}

func readImage(path string) (*bytecode.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	img, err := bytecode.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// reportError prints a VM error, enriching its position through bridge
// when a source map was supplied (SPEC_FULL.md §4.13: "pure enrichment,
// never required for correctness").
func reportError(logger *diag.Logger, bridge *srcmap.Bridge, err error) {
	vmErr, ok := err.(errors.VMError)
	if !ok {
		logger.Errorf("%s", err)
		return
	}
	pos := vmErr.Pos()
	if bridge != nil && pos.Source != nil {
		resolved := bridge.Resolve(0, pos)
		if resolved.OK {
			logger.Errorf("%s: %s (%s:%d:%d)", vmErr.Code(), vmErr.Message(), resolved.Source, resolved.Line, resolved.Column)
			return
		}
	}
	if pos.Source != nil {
		logger.Errorf("%s: %s (%s:%d:%d)", vmErr.Code(), vmErr.Message(), pos.Source.DisplayPath(), pos.Line, pos.Column)
		return
	}
	logger.Errorf("%s: %s (line %d, col %d)", vmErr.Code(), vmErr.Message(), pos.Line, pos.Column)
}
