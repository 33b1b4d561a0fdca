package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/funvibe/jitclass/internal/backend"
	"github.com/funvibe/jitclass/internal/config"
	"github.com/funvibe/jitclass/internal/export"
	"github.com/funvibe/jitclass/internal/exttypes"
	"github.com/funvibe/jitclass/internal/parser"
	"github.com/funvibe/jitclass/internal/pipeline"
	"github.com/funvibe/jitclass/internal/store"
	"github.com/funvibe/jitclass/internal/symbols"
	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("jitclass")

const usage = `usage: jitclass [flags] file...

Compiles the classes of each file into extension types and prints their
layouts. Classes of later files may inherit from classes of earlier ones.

flags:
`

type options struct {
	configPath string
	storePath  string
	protoPkg   string
	annotate   bool
	sequential bool
	verbosity  int
	files      []string
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("jitclass", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "path of "+config.ConfigFileName+" (default: searched upwards from the first file)")
	fs.StringVar(&o.storePath, "store", "", "SQLite database to persist layouts to")
	fs.StringVar(&o.protoPkg, "proto", "", "print the records as a protobuf file descriptor in this package")
	fs.BoolVar(&o.annotate, "annotate", false, "print the instructions emitted per source line")
	fs.BoolVar(&o.sequential, "sequential", false, "compile classes one at a time in source order")
	fs.IntVar(&o.verbosity, "v", -1, "log verbosity (0 errors, 1 warnings, 2 info, 3 debug)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.files = fs.Args()
	if len(o.files) == 0 {
		fs.Usage()
		return nil, fmt.Errorf("no input files")
	}
	return o, nil
}

func loadConfig(o *options) (*config.Config, error) {
	path := o.configPath
	if path == "" {
		found, err := config.FindConfig(filepath.Dir(o.files[0]))
		if err != nil {
			return nil, err
		}
		path = found
	}
	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if o.annotate {
		cfg.Annotate = true
	}
	if o.storePath != "" {
		cfg.Store = o.storePath
	}
	if o.verbosity >= 0 {
		cfg.Log.Verbosity = o.verbosity
	}
	return cfg, nil
}

// useColor reports whether w is a terminal that accepts ANSI colors.
func useColor(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func printLayout(w io.Writer, ext *exttypes.ExtensionType, annotate, color bool) {
	desc := ext.Describe()
	if color {
		desc = "\x1b[1m" + desc[:len("class ")+len(ext.Name)] + "\x1b[0m" + desc[len("class ")+len(ext.Name):]
	}
	fmt.Fprint(w, desc)
	if !annotate {
		return
	}

	names := make([]string, 0, len(ext.Methods)+1)
	funcs := make(map[string]*exttypes.FuncEnv, len(ext.Methods)+1)
	for name, fe := range ext.Methods {
		names = append(names, name)
		funcs[name] = fe
	}
	sort.Strings(names)
	if init := ext.Initializer; init != nil && init.Method != nil && init.Method.Owner == ext.Name {
		names = append([]string{config.InitMethodName}, names...)
		funcs[config.InitMethodName] = init
	}
	for _, name := range names {
		fe := funcs[name]
		if fe.Annotations == nil {
			continue
		}
		fmt.Fprintf(w, "  %s.%s:\n", ext.Name, name)
		lines := make([]int, 0, len(fe.Annotations.LineNoMap))
		for line := range fe.Annotations.LineNoMap {
			lines = append(lines, line)
		}
		sort.Ints(lines)
		for _, line := range lines {
			for _, n := range fe.Annotations.LineNoMap[line] {
				fmt.Fprintf(w, "    %4d  %s\n", line, fe.Annotations.LineMap[n])
			}
		}
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	o, err := parseArgs(args, stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return 2
	}
	cfg, err := loadConfig(o)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return 1
	}
	commonlog.Configure(cfg.Log.Verbosity, nil)

	opts, err := exttypes.OptionsFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return 1
	}

	var db *store.Store
	if cfg.Store != "" {
		if db, err = store.Open(cfg.Store); err != nil {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			return 1
		}
		defer db.Close()
	}

	env := symbols.NewEnv()
	color := useColor(stdout)
	var all []*exttypes.ExtensionType
	defer func() {
		if err := exttypes.UnloadAll(env, all); err != nil {
			log.Warningf("%s", err)
		}
	}()
	status := 0
	for _, path := range o.files {
		source, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error reading source file: %s\n", err)
			status = 1
			continue
		}

		fileOpts := opts
		fileOpts.File = path
		var b backend.Backend = backend.NewConcurrent(fileOpts)
		if o.sequential {
			b = backend.NewSequential(fileOpts)
		}
		ctx := pipeline.New(
			&parser.LexerProcessor{},
			&parser.ParserProcessor{},
			backend.NewCompileProcessor(b),
		).Run(pipeline.NewPipelineContext(path, string(source), env))

		for _, ext := range ctx.Extensions {
			printLayout(stdout, ext, cfg.Annotate, color)
			if db != nil {
				if err := db.Save(ext); err != nil {
					fmt.Fprintf(stderr, "Error: %s\n", err)
					status = 1
				}
			}
		}
		all = append(all, ctx.Extensions...)
		if ctx.Failed() {
			fmt.Fprintf(stderr, "Errors in %s:\n", path)
			for _, err := range ctx.Errors {
				fmt.Fprintf(stderr, "- %s\n", err.Error())
			}
			status = 1
		}
	}

	if o.protoPkg != "" && len(all) > 0 {
		_, fdp, err := export.File(o.protoPkg, all)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			return 1
		}
		text, err := export.Text(fdp)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			return 1
		}
		fmt.Fprint(stdout, text)
	}
	return status
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
