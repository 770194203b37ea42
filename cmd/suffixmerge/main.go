// Command suffixmerge builds suffix arrays for large corpora, either in one
// go or as overlapping parts merged in parallel, and queries the result.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/viniciusth/suffixmerge"
)

const usage = `usage: suffixmerge <command> [flags]

commands:
  make        build the suffix array of a file in memory
  make-part   build the suffix array of a byte range of a file
  merge       merge part suffix arrays into one
  build       split, build and merge in one step
  count       count occurrences of a query
  find        print occurrences of a query with surrounding text
  docs        list or retrieve the documents containing a query

run "suffixmerge <command> -h" for the flags of a command.
`

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type common struct {
	verbose   bool
	logFormat string
}

func (c *common) register(fs *flag.FlagSet) {
	fs.BoolVar(&c.verbose, "v", false, "debug logging")
	fs.StringVar(&c.logFormat, "log-format", "text", "log format: text or json")
}

func (c *common) logger() *suffixmerge.Logger {
	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	if c.logFormat == "json" {
		return suffixmerge.NewJSONLogger(level)
	}
	return suffixmerge.NewTextLogger(level)
}

var commands = map[string]func(ctx context.Context, args []string) error{
	"make":      cmdMake,
	"make-part": cmdMakePart,
	"merge":     cmdMerge,
	"build":     cmdBuild,
	"count":     cmdCount,
	"find":      cmdFind,
	"docs":      cmdDocs,
}

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmd(ctx, os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "suffixmerge %s: %v\n", os.Args[1], err)
		return 1
	}
	return 0
}

func cmdMake(_ context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("make", flag.ContinueOnError)
	c.register(fs)
	dataFile := fs.String("data-file", "", "file to index")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dataFile == "" {
		return errors.New("-data-file is required")
	}
	_, err := suffixmerge.MakeTable(*dataFile, suffixmerge.WithLogger(c.logger()))
	return err
}

func cmdMakePart(_ context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("make-part", flag.ContinueOnError)
	c.register(fs)
	dataFile := fs.String("data-file", "", "file to index")
	start := fs.Int64("start-byte", 0, "first byte of the part")
	end := fs.Int64("end-byte", 0, "end of the part (exclusive)")
	minWidth := fs.Int("min-width", 0, "minimum pointer width in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dataFile == "" {
		return errors.New("-data-file is required")
	}
	_, err := suffixmerge.MakePart(*dataFile, *start, *end,
		suffixmerge.WithLogger(c.logger()),
		suffixmerge.WithMinWidth(*minWidth),
	)
	return err
}

func cmdMerge(ctx context.Context, args []string) error {
	var (
		c     common
		parts stringList
	)
	fs := flag.NewFlagSet("merge", flag.ContinueOnError)
	c.register(fs)
	fs.Var(&parts, "suffix-path", "part to merge, in corpus order (repeatable)")
	output := fs.String("output-file", "", "merged output path")
	threads := fs.Int("num-threads", suffixmerge.DefaultThreads, "merge partitions")
	overlap := fs.Int("overlap", suffixmerge.DefaultOverlap, "bytes shared by adjacent parts")
	concat := fs.Bool("concat", false, "concatenate partition tables into <output>.table.bin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *output == "" {
		return errors.New("-output-file is required")
	}
	_, err := suffixmerge.Merge(ctx, parts, *output,
		suffixmerge.WithLogger(c.logger()),
		suffixmerge.WithThreads(*threads),
		suffixmerge.WithOverlap(*overlap),
		suffixmerge.WithConcat(*concat),
	)
	return err
}

func cmdBuild(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	c.register(fs)
	dataFile := fs.String("data-file", "", "file to index")
	jobs := fs.Int("jobs", 0, "number of parts (0 picks from the file size)")
	concurrency := fs.Int("concurrency", 0, "parts built at once (0 is the number of CPUs)")
	threads := fs.Int("num-threads", suffixmerge.DefaultThreads, "merge partitions")
	overlap := fs.Int("overlap", suffixmerge.DefaultOverlap, "bytes shared by adjacent parts")
	tmpDir := fs.String("tmp-dir", "", "directory for intermediate files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dataFile == "" {
		return errors.New("-data-file is required")
	}
	_, err := suffixmerge.Build(ctx, *dataFile,
		suffixmerge.WithLogger(c.logger()),
		suffixmerge.WithJobs(*jobs),
		suffixmerge.WithConcurrency(*concurrency),
		suffixmerge.WithThreads(*threads),
		suffixmerge.WithOverlap(*overlap),
		suffixmerge.WithTmpDir(*tmpDir),
	)
	return err
}

type queryFlags struct {
	common
	dataFile string
	query    string
	nfc      bool
	mmap     bool
}

func (q *queryFlags) register(fs *flag.FlagSet) {
	q.common.register(fs)
	fs.StringVar(&q.dataFile, "data-file", "", "indexed file")
	fs.StringVar(&q.query, "query", "", "substring to search for")
	fs.BoolVar(&q.nfc, "nfc", false, "NFC-normalize the query")
	fs.BoolVar(&q.mmap, "mmap", false, "memory-map the table")
}

func (q *queryFlags) open() (*suffixmerge.Searcher, error) {
	if q.dataFile == "" {
		return nil, errors.New("-data-file is required")
	}
	s, err := suffixmerge.OpenSearcher(q.dataFile, q.mmap)
	if err != nil {
		return nil, err
	}
	if q.nfc {
		s.Normalize()
	}
	return s, nil
}

func cmdCount(_ context.Context, args []string) error {
	var q queryFlags
	fs := flag.NewFlagSet("count", flag.ContinueOnError)
	q.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := q.open()
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.Count([]byte(q.query))
	if err != nil {
		return err
	}
	q.logger().Debug("count", "query", q.query, "occurrences", n)
	fmt.Println(n)
	return nil
}

func cmdFind(_ context.Context, args []string) error {
	var q queryFlags
	fs := flag.NewFlagSet("find", flag.ContinueOnError)
	q.register(fs)
	limit := fs.Int("limit", 64, "maximum occurrences to print")
	surround := fs.Int("context", 128, "bytes of text to show on each side")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := q.open()
	if err != nil {
		return err
	}
	defer s.Close()

	positions, err := s.Find([]byte(q.query), *limit)
	if err != nil {
		return err
	}
	for _, p := range positions {
		before, after := s.Context(p, len(q.query), *surround)
		fmt.Printf("%d\t%q\t%q\t%q\n", p, before, q.query, after)
	}
	return nil
}

func cmdDocs(_ context.Context, args []string) error {
	var q queryFlags
	fs := flag.NewFlagSet("docs", flag.ContinueOnError)
	q.register(fs)
	limit := fs.Int("limit", 64, "maximum documents to list (0 for all)")
	retrieve := fs.Bool("retrieve", false, "write the documents as id,text CSV records (needs <data-file>.size)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := q.open()
	if err != nil {
		return err
	}
	defer s.Close()

	ids, err := s.Documents([]byte(q.query), *limit)
	if err != nil {
		return err
	}
	q.logger().Debug("documents", "query", q.query, "found", len(ids))
	if *retrieve {
		return s.RetrieveDocuments(csv.NewWriter(os.Stdout), ids)
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}
