// pdbdump is a CLI tool for extracting managed method custom debug
// information from Microsoft PDB files.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jtang613/gocdi/pkg/pdb"
	"github.com/jtang613/gocdi/pkg/pdb/cdi"
)

type options struct {
	showInfo    bool
	showModules bool
	showMethods bool
	showAll     bool
	blob        bool
	token       string
	kind        string
	format      string
	pretty      bool
	verbose     bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options
	flagSet := pflag.NewFlagSet("pdbdump", pflag.ContinueOnError)
	flagSet.BoolVar(&opts.showInfo, "info", false, "show PDB file information")
	flagSet.BoolVar(&opts.showModules, "modules", false, "list all modules")
	flagSet.BoolVar(&opts.showMethods, "methods", false, "list managed methods and their custom debug info records")
	flagSet.BoolVar(&opts.showAll, "all", false, "show all information")
	flagSet.BoolVar(&opts.blob, "blob", false, "treat the input as a raw custom debug info blob")
	flagSet.StringVar(&opts.token, "token", "", "method metadata token (e.g. 0x06000001)")
	flagSet.StringVar(&opts.kind, "kind", "", "record kind to look up (name or value)")
	flagSet.StringVar(&opts.format, "format", "json", "output format: json or yaml")
	flagSet.BoolVar(&opts.pretty, "pretty", false, "pretty-print JSON output")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "log diagnostics to stderr")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pdbdump [options] <file>\n\nOptions:\n")
		flagSet.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pdbdump --methods app.pdb\n")
		fmt.Fprintf(os.Stderr, "  pdbdump --token 0x06000001 --kind DynamicLocals app.pdb\n")
		fmt.Fprintf(os.Stderr, "  pdbdump --blob --kind EditAndContinueLocalSlotMap method.cdi\n")
	}

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() < 1 {
		flagSet.Usage()
		return fmt.Errorf("missing input file")
	}
	if opts.kind != "" && opts.token == "" && !opts.blob {
		flagSet.Usage()
		return fmt.Errorf("--kind requires --token or --blob")
	}

	logger, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	out, err := newEncoder(os.Stdout, opts.format, opts.pretty)
	if err != nil {
		return err
	}

	var kind *cdi.RecordKind
	if opts.kind != "" {
		k, err := cdi.ParseKind(opts.kind)
		if err != nil {
			return err
		}
		kind = &k
	}

	path := flagSet.Arg(0)
	if opts.blob {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read blob: %w", err)
		}
		sugar.Debugw("read blob", "path", path, "bytes", len(data))
		return out.Encode(describeBlob(data, kind))
	}

	p, err := pdb.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open PDB: %w", err)
	}
	defer p.Close()
	sugar.Debugw("opened PDB", "path", path, "streams", p.Info().Streams)

	ctx := context.Background()

	if opts.token != "" {
		token, err := strconv.ParseUint(opts.token, 0, 32)
		if err != nil {
			return fmt.Errorf("invalid token %q: %w", opts.token, err)
		}
		view, err := lookupMethod(ctx, p, uint32(token), kind)
		if err != nil {
			return err
		}
		sugar.Debugw("looked up method", "token", opts.token, "found", view.Found)
		return out.Encode(view)
	}

	if !opts.showInfo && !opts.showModules && !opts.showMethods && !opts.showAll {
		opts.showInfo = true
	}

	result := make(map[string]interface{})
	if opts.showInfo || opts.showAll {
		result["info"] = p.Info()
	}
	if opts.showMethods || opts.showAll {
		methods, err := p.Methods(ctx)
		if err != nil {
			return fmt.Errorf("failed to read methods: %w", err)
		}
		sugar.Debugw("scanned methods", "count", len(methods))
		for _, m := range methods {
			if m.CDIError != "" {
				sugar.Warnw("malformed custom debug info", "token", fmt.Sprintf("0x%08x", m.Token), "error", m.CDIError)
			}
		}
		for _, mod := range p.Modules() {
			if mod.Error != "" {
				sugar.Warnw("skipped unreadable module", "module", mod.Name, "error", mod.Error)
			}
		}
		result["methods"] = methods
	}
	// After the method scan so per-module read errors are included.
	if opts.showModules || opts.showAll {
		result["modules"] = p.Modules()
	}

	return out.Encode(result)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
