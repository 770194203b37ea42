package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/viniciusth/suffixmerge"
)

type variant struct {
	name string
	run  func(ctx context.Context, path string, cfg config) error
}

type config struct {
	jobs    int
	threads int
	overlap int
}

var variants = map[string]variant{
	"make": {name: "make", run: func(_ context.Context, path string, _ config) error {
		_, err := suffixmerge.MakeTable(path)
		return err
	}},
	"build": {name: "build", run: func(ctx context.Context, path string, cfg config) error {
		_, err := suffixmerge.Build(ctx, path,
			suffixmerge.WithJobs(cfg.jobs),
			suffixmerge.WithThreads(cfg.threads),
			suffixmerge.WithOverlap(cfg.overlap),
		)
		return err
	}},
}

type densityType string

const (
	densityLow  densityType = "low"
	densityHigh densityType = "high"
)

type memMonitor struct {
	maxAlloc uint64
	stop     chan struct{}
	done     chan struct{}
}

func newMemMonitor() *memMonitor {
	mm := &memMonitor{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(mm.done)
		for {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			if m.Alloc > mm.maxAlloc {
				mm.maxAlloc = m.Alloc
			}
			select {
			case <-mm.stop:
				return
			default:
				time.Sleep(10 * time.Millisecond)
			}
		}
	}()
	return mm
}

func (mm *memMonitor) Stop() uint64 {
	close(mm.stop)
	<-mm.done
	return mm.maxAlloc
}

// corpus returns size random lowercase bytes. With high density a block of
// repeat bytes is copied over and over, which stretches the common prefixes
// the merge has to compare.
func corpus(r *rand.Rand, size, repeat int, density densityType) []byte {
	text := make([]byte, size)
	for i := range text {
		text[i] = byte(r.Intn(26) + 'a')
	}
	if density == densityHigh && repeat > 0 && repeat < size {
		block := append([]byte(nil), text[:repeat]...)
		for i := repeat; i+repeat <= size; i += 2 * repeat {
			copy(text[i:], block)
		}
	}
	return text
}

func measure(ctx context.Context, v variant, path string, cfg config) (time.Duration, uint64, []byte, error) {
	runtime.GC()
	mm := newMemMonitor()
	start := time.Now()
	err := v.run(ctx, path, cfg)
	dur := time.Since(start)
	peak := mm.Stop()
	if err != nil {
		return 0, 0, nil, err
	}
	table, err := os.ReadFile(suffixmerge.TablePath(path))
	return dur, peak, table, err
}

func runBenchmark(v variant, size, repeat, runs int, density densityType, cfg config) error {
	ctx := context.Background()
	dir, err := os.MkdirTemp("", "suffixmerge-bench")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	for run := 0; run < runs; run++ {
		r := rand.New(rand.NewSource(int64(run)))
		path := filepath.Join(dir, fmt.Sprintf("corpus-%d", run))
		if err := os.WriteFile(path, corpus(r, size, repeat, density), 0o644); err != nil {
			return err
		}

		dur, peak, table, err := measure(ctx, v, path, cfg)
		if err != nil {
			return err
		}

		// Check the variant against a plain in-memory build.
		want, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		sa, err := suffixmerge.BuildSuffixArray(want)
		if err != nil {
			return err
		}
		enc, err := suffixmerge.Encode(sa, suffixmerge.PointerWidth(uint64(len(want))))
		if err != nil {
			return err
		}
		ok := bytes.Equal(enc, table)

		fmt.Printf("%s,%d,%d,%s,%d,%d,%d,%.0f,%d,%t\n",
			v.name, size, repeat, density, cfg.jobs, cfg.threads, cfg.overlap,
			float64(dur.Nanoseconds()), peak, ok)
	}
	return nil
}

func main() {
	variantName := flag.String("variant", "", "Variant to benchmark: make or build")
	size := flag.Int("size", 0, "Corpus size in bytes")
	repeat := flag.Int("repeat", 1000, "Repeated block length for high density")
	jobs := flag.Int("jobs", 4, "Parts for the build variant")
	threads := flag.Int("threads", runtime.NumCPU(), "Merge partitions for the build variant")
	overlap := flag.Int("overlap", suffixmerge.DefaultOverlap, "Overlap between parts")
	runs := flag.Int("runs", 3, "Number of runs for averaging")
	d := flag.String("d", "low", "Density: low or high")
	cpuprofile := flag.String("cpuprofile", "", "Write CPU profile to file")
	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "could not start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	if *variantName == "" || *size <= 0 || *jobs <= 0 || *threads <= 0 || *overlap < 0 {
		fmt.Println("Usage: go run main.go -variant=<variant> -size=<bytes> [-jobs=<n>] [-threads=<n>] [-overlap=<n>] [-d=<density>] [-runs=<runs>]")
		fmt.Println("Available variants: make, build")
		os.Exit(1)
	}

	v, ok := variants[*variantName]
	if !ok {
		fmt.Println("Invalid variant:", *variantName)
		os.Exit(1)
	}

	cfg := config{jobs: *jobs, threads: *threads, overlap: *overlap}
	if err := runBenchmark(v, *size, *repeat, *runs, densityType(*d), cfg); err != nil {
		fmt.Fprintf(os.Stderr, "benchmark failed: %v\n", err)
		os.Exit(1)
	}
}
