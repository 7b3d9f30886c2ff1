// Package cli implements the hdrlogprocessor command line driver of
// spec.md §6: a thin shell over the histogram package's decode/merge/query
// primitives and internal/logtext's line format, in the
// Run(stdin, stdout, stderr, args, env) int shape used throughout this
// codebase's command entrypoints.
package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"

	hdr "github.com/HdrHistogram/HdrHistogram-sub001"
	"github.com/HdrHistogram/HdrHistogram-sub001/internal/logtext"
)

type options struct {
	csv                           bool
	verbose                       bool
	inputPath                     string
	outputPath                    string
	tag                           string
	tagExplicit                   bool
	listTags                      bool
	allTags                       bool
	startSec                      float64
	hasStart                      bool
	endSec                        float64
	hasEnd                        bool
	outputValueUnitRatio          float64
	percentilesOutputTicksPerHalf int
	help                          bool
}

// Run parses args and drives the log-processing pipeline, returning the
// process exit code: 0 on success, 1 on argument or I/O error, matching
// spec.md §6.
func Run(_ io.Reader, stdout, stderr io.Writer, args []string, _ map[string]string) int {
	opts, fs, err := parseArgs(args)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		fs.SetOutput(stderr)
		fs.PrintDefaults()
		return 1
	}

	if opts.help {
		fs.SetOutput(stdout)
		fs.PrintDefaults()
		return 0
	}

	if opts.inputPath == "" {
		fmt.Fprintln(stderr, "error: -i <file> is required")
		return 1
	}

	in, err := os.Open(opts.inputPath)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer in.Close()

	tags, err := collectTags(in, opts, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	if opts.listTags {
		for _, t := range tags {
			fmt.Fprintln(stdout, t)
		}
		return 0
	}

	if _, err := in.Seek(0, io.SeekStart); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	// -alltags is a no-op-compatible flag: processing every tag (including
	// the untagged series) is already the default. Only an explicitly
	// passed -tag narrows the run to a single tag.
	selected := tags
	if opts.tagExplicit {
		selected = []string{opts.tag}
	}
	multiTag := len(selected) > 1

	for _, tag := range selected {
		if _, err := in.Seek(0, io.SeekStart); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}

		merged, err := mergeTaggedIntervals(in, tag, opts, stderr)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}

		if opts.verbose {
			fmt.Fprintf(stderr, "tag %q: %d total values\n", tag, merged.GetTotalCount())
		}

		if err := emit(stdout, merged, tag, opts, multiTag); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
	}

	return 0
}

// onBadLine implements spec.md §7's reader degradation contract: by
// default a malformed line, or an interval that fails to decode or merge,
// is skipped silently; with -v it is reported on stderr and aborts the run
// on the first one.
func onBadLine(stderr io.Writer, verbose bool, err error) (abort bool) {
	if !verbose {
		return false
	}
	fmt.Fprintln(stderr, "warning:", err)
	return true
}

func parseArgs(args []string) (options, *flag.FlagSet, error) {
	fs := flag.NewFlagSet("hdrlogprocessor", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts options
	fs.BoolVar(&opts.csv, "csv", false, "output in CSV format")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose diagnostics on stderr")
	fs.StringVarP(&opts.inputPath, "i", "i", "", "input log file")
	fs.StringVarP(&opts.outputPath, "o", "o", "", "output file (also writes <file>.hgrm)")
	fs.StringVar(&opts.tag, "tag", "", "process only intervals with this tag")
	fs.BoolVar(&opts.listTags, "listtags", false, "list tags present in the input and exit")
	fs.BoolVar(&opts.allTags, "alltags", false, "process every tag found in the input")
	start := fs.String("start", "", "only include intervals starting at or after this many seconds")
	end := fs.String("end", "", "only include intervals starting before this many seconds")
	fs.Float64Var(&opts.outputValueUnitRatio, "outputValueUnitRatio", 1_000_000, "divide output values by this ratio")
	fs.IntVar(&opts.percentilesOutputTicksPerHalf, "percentilesOutputTicksPerHalf", 5, "percentile ticks per half distance to 100")
	fs.BoolVarP(&opts.help, "help", "h", false, "show usage")

	// pflag reads a single-dash argument as a cluster of one-letter
	// shorthands, so single-dash long flags (-csv, -tag, ...) are rewritten
	// to their double-dash form before parsing.
	normalized := make([]string, len(args))
	for i, a := range args {
		normalized[i] = a
		if len(a) > 2 && a[0] == '-' && a[1] != '-' {
			if name, _, _ := strings.Cut(a[1:], "="); fs.Lookup(name) != nil {
				normalized[i] = "-" + a
			}
		}
	}

	if err := fs.Parse(normalized); err != nil {
		return options{}, fs, err
	}
	opts.tagExplicit = fs.Changed("tag")

	if *start != "" {
		v, err := strconv.ParseFloat(*start, 64)
		if err != nil {
			return options{}, fs, fmt.Errorf("invalid -start: %w", err)
		}
		opts.startSec, opts.hasStart = v, true
	}
	if *end != "" {
		v, err := strconv.ParseFloat(*end, 64)
		if err != nil {
			return options{}, fs, fmt.Errorf("invalid -end: %w", err)
		}
		opts.endSec, opts.hasEnd = v, true
	}

	return opts, fs, nil
}

// collectTags scans the whole input once to discover every distinct tag,
// with the empty string standing for untagged intervals.
func collectTags(r io.ReadSeeker, opts options, stderr io.Writer) ([]string, error) {
	lr := logtext.NewReader(r)
	lr.Diagnostic = func(err error) bool { return onBadLine(stderr, opts.verbose, err) }

	seen := map[string]bool{}
	var out []string

	for {
		e, err := lr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if !seen[e.Tag] {
			seen[e.Tag] = true
			out = append(out, e.Tag)
		}
	}

	return out, nil
}

// mergeTaggedIntervals decodes every interval in r matching tag and within
// the configured [start, end) window, merging them into a single
// histogram. A malformed line or an interval that fails to decode/merge is
// skipped unless -v is set, per spec.md §7.
func mergeTaggedIntervals(r io.Reader, tag string, opts options, stderr io.Writer) (*hdr.Histogram, error) {
	lr := logtext.NewReader(r)
	lr.Diagnostic = func(err error) bool { return onBadLine(stderr, opts.verbose, err) }

	merged, err := hdr.NewAutoResizing(3)
	if err != nil {
		return nil, err
	}

	baseTime := 0.0
	for {
		e, err := lr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if e.Tag != tag {
			continue
		}
		if bt, ok := lr.BaseTime(); ok {
			baseTime = bt
		}

		absoluteStart := e.StartTimestamp - baseTime
		if opts.hasStart && absoluteStart < opts.startSec {
			continue
		}
		if opts.hasEnd && absoluteStart >= opts.endSec {
			continue
		}

		h, err := hdr.DecodeFromCompressedByteBuffer(e.CompressedHistogram, 0)
		if err != nil {
			wrapped := fmt.Errorf("decoding interval at %.3f: %w", e.StartTimestamp, err)
			if onBadLine(stderr, opts.verbose, wrapped) {
				return nil, wrapped
			}
			continue
		}

		if err := merged.Add(h); err != nil {
			wrapped := fmt.Errorf("merging interval at %.3f: %w", e.StartTimestamp, err)
			if onBadLine(stderr, opts.verbose, wrapped) {
				return nil, wrapped
			}
			continue
		}
	}

	return merged, nil
}

// emit writes h to opts.outputPath (or stdout when unset) in the requested
// format, and — whenever -o is given — additionally writes the percentile
// distribution text to a "<file>.hgrm" side file, matching the -o flag's
// own documented contract (spec.md §6). multiTag controls whether the main
// output path gets a per-tag suffix, since more than one tag can't share
// one file.
func emit(stdout io.Writer, h *hdr.Histogram, tag string, opts options, multiTag bool) error {
	var w io.Writer = stdout

	path := opts.outputPath
	if multiTag && tag != "" && path != "" {
		path = path + "." + sanitizeTag(tag)
	}

	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	if opts.csv {
		if err := emitCSV(w, h, opts.outputValueUnitRatio); err != nil {
			return err
		}
	} else {
		if err := logtext.WritePercentileDistribution(w, h, opts.outputValueUnitRatio, opts.percentilesOutputTicksPerHalf); err != nil {
			return err
		}
	}

	if path == "" {
		return nil
	}

	hgrm, err := os.Create(path + ".hgrm")
	if err != nil {
		return err
	}
	defer hgrm.Close()

	return logtext.WritePercentileDistribution(hgrm, h, opts.outputValueUnitRatio, opts.percentilesOutputTicksPerHalf)
}

func emitCSV(w io.Writer, h *hdr.Histogram, ratio float64) error {
	_, err := fmt.Fprintf(w, "Value,Percentile,TotalCount\n")
	if err != nil {
		return err
	}
	for _, p := range []float64{50, 75, 90, 95, 99, 99.9, 99.99, 100} {
		v := float64(h.GetValueAtPercentile(p)) / ratio
		if _, err := fmt.Fprintf(w, "%.3f,%.5f,%d\n", v, p/100.0, h.GetTotalCount()); err != nil {
			return err
		}
	}
	return nil
}

func sanitizeTag(tag string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, tag)
}
