// Javelin CLI - runs the main method of a class from a classpath
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/javelin/bytecode"
	"github.com/chazu/javelin/classfile"
	"github.com/chazu/javelin/classpath"
	"github.com/chazu/javelin/manifest"
	"github.com/chazu/javelin/vm"
)

// options are the settings after merging javelin.toml with flags.
type options struct {
	classpath []string
	main      string
	maxDepth  int
	verbosity int
	logPath   string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("javelin", flag.ContinueOnError)
	cp := fs.String("cp", "", "Classpath: directories, .jar files and "+classpath.BundleExt+" bundles")
	verbosity := fs.Int("v", 0, "Log verbosity (1 info, 2 debug)")
	config := fs.String("config", "", "Project directory containing "+manifest.FileName+" (default: search upward from .)")
	maxDepth := fs.Int("max-depth", 0, "Maximum guest call depth")
	pack := fs.String("pack", "", "Write every class on the classpath to a bundle file and exit")
	disasm := fs.String("disasm", "", "Disassemble the named class and exit")
	profile := fs.Int("profile", 0, "Print the N most invoked methods to stderr after the run")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: javelin [options] [class] [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Runs the static main(String[]) method of a class.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  javelin -cp build/classes demo.Hello world   # Run demo.Hello\n")
		fmt.Fprintf(os.Stderr, "  javelin                                      # Run [runtime] main from %s\n", manifest.FileName)
		fmt.Fprintf(os.Stderr, "  javelin -cp app.jar -pack app%s             # Bundle app.jar\n", classpath.BundleExt)
		fmt.Fprintf(os.Stderr, "  javelin -cp app%s -disasm demo.Hello       # Show bytecode\n", classpath.BundleExt)
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	opts, err := loadOptions(*config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["cp"] {
		opts.classpath = classpath.Split(*cp)
	}
	if set["v"] {
		opts.verbosity = *verbosity
	}
	if set["max-depth"] {
		opts.maxDepth = *maxDepth
	}
	rest := fs.Args()
	if len(rest) > 0 {
		opts.main, rest = rest[0], rest[1:]
	}

	configureLogging(opts)
	log := commonlog.GetLogger("javelin")

	path, err := classpath.Open(opts.classpath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		return 1
	}
	defer path.Close()
	log.Debugf("classpath: %s", path)

	switch {
	case *pack != "":
		return packBundle(path, *pack)
	case *disasm != "":
		return disassemble(path, *disasm)
	}

	if opts.main == "" {
		fs.Usage()
		return 2
	}

	engine := vm.New(path)
	if opts.maxDepth > 0 {
		engine.MaxFrameDepth = opts.maxDepth
	}
	if *profile > 0 {
		engine.Profiler = vm.NewProfiler()
		engine.Profiler.OnHot = func(p *vm.MethodProfile) {
			log.Debugf("hot method %s", p.Method)
		}
		defer printProfile(engine.Profiler, *profile)
	}
	if err := engine.RunMain(opts.main, rest); err != nil {
		var gx *vm.GuestException
		if errors.As(err, &gx) {
			// the stack trace was already printed by the guest
			return 1
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadOptions reads the project manifest named by dir, or the nearest one
// above the working directory when dir is empty.
func loadOptions(dir string) (*options, error) {
	opts := &options{classpath: []string{"."}}

	var m *manifest.Manifest
	var err error
	if dir != "" {
		m, err = manifest.Load(dir)
	} else {
		m, err = manifest.FindAndLoad(".")
	}
	if err != nil || m == nil {
		return opts, err
	}

	if opts.classpath, err = m.ClasspathEntries(); err != nil {
		return nil, err
	}
	opts.main = m.Runtime.Main
	opts.maxDepth = m.Runtime.MaxFrameDepth
	opts.verbosity = m.Log.Verbosity
	opts.logPath = m.LogPath()
	return opts, nil
}

func configureLogging(opts *options) {
	if opts.logPath != "" {
		commonlog.Configure(opts.verbosity, &opts.logPath)
		return
	}
	commonlog.Configure(opts.verbosity, nil)
}

func packBundle(path *classpath.Path, out string) int {
	classes, err := path.Collect()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		return 1
	}
	if err := classpath.SaveBundle(out, classes); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		return 1
	}
	fmt.Printf("Wrote %d classes to %s\n", len(classes), filepath.Clean(out))
	return 0
}

func disassemble(path *classpath.Path, name string) int {
	c, err := path.LoadClass(strings.ReplaceAll(name, ".", "/"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		return 1
	}
	printClass(c)
	return 0
}

func printClass(c *classfile.Class) {
	fmt.Printf("class %s extends %s", c.Name, c.SuperName)
	if len(c.Interfaces) > 0 {
		fmt.Printf(" implements %s", strings.Join(c.Interfaces, ", "))
	}
	fmt.Println()
	for _, f := range c.Fields {
		fmt.Printf("  field %s %s (flags 0x%04x)\n", f.Name, f.Descriptor, uint16(f.AccessFlags))
	}
	for _, m := range c.Methods {
		fmt.Printf("\n  method %s%s (flags 0x%04x)\n", m.Name, m.Descriptor, uint16(m.AccessFlags))
		if m.Code == nil {
			continue
		}
		fmt.Printf("    stack=%d locals=%d\n", m.Code.MaxStack, m.Code.MaxLocals)
		for _, line := range strings.Split(strings.TrimRight(bytecode.Disassemble(m.Code.Bytecode, c), "\n"), "\n") {
			fmt.Printf("    %s\n", line)
		}
		for _, h := range m.Code.Handlers {
			catch := h.CatchType
			if catch == "" {
				catch = "any"
			}
			fmt.Printf("    handler [%d, %d) -> %d %s\n", h.StartPC, h.EndPC, h.HandlerPC, catch)
		}
	}
}

func printProfile(p *vm.Profiler, n int) {
	stats := p.Stats()
	fmt.Fprintf(os.Stderr, "\n%d invocations of %d methods (%d native, %d hot)\n",
		stats.TotalInvocations, stats.TotalMethods, stats.NativeMethods, stats.HotMethods)
	for _, mp := range p.Top(n) {
		fmt.Fprintf(os.Stderr, "%10d  %s\n", mp.InvocationCount, mp.Method)
	}
}
