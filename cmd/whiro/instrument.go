package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"whiro/internal/config"
	"whiro/internal/diag"
	"whiro/internal/ir"
	"whiro/internal/monitor"
	"whiro/internal/observ"
	"whiro/internal/typetable"
)

var instrumentCmd = &cobra.Command{
	Use:   "instrument [modules...]",
	Short: "Instrument IR modules with inspection points",
	Long: `Reads each IR module container, rewrites it with snapshot machinery
and writes the rewritten module next to a Type Table file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstrument,
}

func init() {
	f := instrumentCmd.Flags()
	f.Bool("only-main", false, "install inspection points only in main")
	f.Bool("stack", false, "inspect stack-resident locals")
	f.Bool("static", false, "inspect globals")
	f.Bool("heap", false, "inspect heap-pointing variables (implies --precise)")
	f.Bool("precise", false, "follow pointers instead of printing the pointee type")
	f.Bool("full-heap", false, "dump all live heap entries after every inspection point")
	f.Int("jobs", runtime.NumCPU(), "modules instrumented in parallel")
	f.Bool("stats", false, "print instrumentation statistics")
}

// instrumentResult carries the outcome of one module so the batch can
// report deterministically however the workers interleave.
type instrumentResult struct {
	Path    string
	OutPath string
	Bag     *diag.Bag
	Stats   monitor.Stats
	Timer   *observ.Timer
	Err     error
}

func runInstrument(cmd *cobra.Command, args []string) error {
	opts, err := gatherOptions(cmd)
	if err != nil {
		return err
	}
	jobs, _ := cmd.Flags().GetInt("jobs")
	if jobs < 1 {
		jobs = 1
	}
	maxDiags, _ := cmd.Flags().GetInt("max-diagnostics")
	showStats, _ := cmd.Flags().GetBool("stats")
	showTimings, _ := cmd.Flags().GetBool("timings")
	quiet, _ := cmd.Flags().GetBool("quiet")
	setupColor(cmd)

	results := make([]instrumentResult, len(args))
	var g errgroup.Group
	g.SetLimit(jobs)
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			results[i] = instrumentOne(path, opts, maxDiags)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for i := range results {
		res := &results[i]
		printResult(res, quiet, showStats, showTimings)
		if res.Err != nil || res.Bag.HasErrors() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d modules failed", failed, len(args))
	}
	return nil
}

func gatherOptions(cmd *cobra.Command) (monitor.Options, error) {
	var opts monitor.Options
	cfg, ok, err := config.LoadNearest(".")
	if err != nil {
		return opts, err
	}
	if ok {
		opts = cfg.Options()
	}
	flagBool := func(name string, dst *bool) {
		if cmd.Flags().Changed(name) {
			v, _ := cmd.Flags().GetBool(name)
			*dst = v
		}
	}
	flagBool("only-main", &opts.OnlyMain)
	flagBool("stack", &opts.Stack)
	flagBool("static", &opts.Static)
	flagBool("heap", &opts.Heap)
	flagBool("precise", &opts.Precise)
	flagBool("full-heap", &opts.FullHeap)
	return opts, nil
}

func instrumentOne(path string, opts monitor.Options, maxDiags int) instrumentResult {
	res := instrumentResult{Path: path, Bag: diag.NewBag(maxDiags), Timer: observ.NewTimer()}

	phase := res.Timer.Begin("load")
	m, err := ir.ReadFile(path)
	res.Timer.End(phase, "")
	if err != nil {
		res.Err = fmt.Errorf("loading %s: %w", path, err)
		return res
	}

	phase = res.Timer.Begin("instrument")
	d := monitor.New(m, opts, diag.BagReporter{Bag: res.Bag})
	table, err := d.Run()
	res.Timer.End(phase, fmt.Sprintf("%d functions", d.Stats.InstFuncs))
	res.Stats = d.Stats
	if err != nil {
		res.Err = err
		return res
	}

	phase = res.Timer.Begin("serialise")
	tablePath := monitor.TablePath(m.SourceFile)
	if err := typetable.WriteFile(tablePath, table); err != nil {
		res.Err = fmt.Errorf("writing %s: %w", tablePath, err)
		res.Timer.End(phase, "")
		return res
	}
	res.OutPath = instrumentedPath(path)
	if err := ir.WriteFile(res.OutPath, m); err != nil {
		res.Err = fmt.Errorf("writing %s: %w", res.OutPath, err)
	}
	res.Timer.End(phase, filepath.Base(tablePath))
	return res
}

// instrumentedPath derives the rewritten module's file name.
func instrumentedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_inst" + ext
}

func setupColor(cmd *cobra.Command) {
	mode, _ := cmd.Flags().GetString("color")
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		color.NoColor = !isTerminal(os.Stdout)
	}
}

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
)

func printResult(res *instrumentResult, quiet, showStats, showTimings bool) {
	switch {
	case res.Err != nil:
		failColor.Fprintf(os.Stderr, "FAIL %s: %v\n", res.Path, res.Err)
	case res.Bag.HasErrors():
		failColor.Fprintf(os.Stderr, "FAIL %s\n", res.Path)
	case !quiet:
		okColor.Printf("ok   %s -> %s\n", res.Path, res.OutPath)
	}

	res.Bag.Sort()
	for _, d := range res.Bag.Items() {
		line := fmt.Sprintf("%s %s: %s", d.Code, d.Severity, d.Message)
		if d.Primary.Func != "" {
			line += " (" + d.Primary.Func + ")"
		}
		if d.Severity >= diag.SevWarning {
			warnColor.Fprintln(os.Stderr, line)
		} else if !quiet {
			fmt.Println(line)
		}
	}
	if showStats && res.Err == nil {
		fmt.Print(res.Stats.Summary())
	}
	if showTimings {
		fmt.Print(res.Timer.Summary())
	}
}
