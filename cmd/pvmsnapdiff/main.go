// Command pvmsnapdiff drives the same sequence of memory operations
// against the paged and flat engines and reports any divergence between
// their final snapshots. With -cpuprofile set, it captures a CPU profile
// of the run and prints a one-line summary of it.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/pprof"

	"github.com/google/pprof/profile"

	"github.com/jamzig/jamzig-sub004/memsnap"
	"github.com/jamzig/jamzig-sub004/pvm"
)

func main() {
	var (
		roSize      = flag.Int("ro-size", 0x1000, "read-only payload size in bytes")
		heapPages   = flag.Uint("heap-pages", 4, "initial heap page count")
		stackBytes  = flag.Uint("stack-bytes", 0x2000, "stack size in bytes")
		sbrkBytes   = flag.Uint("sbrk-bytes", 0x1000, "bytes to grow the heap by before snapshotting")
		profilePath = flag.String("cpuprofile", "", "optional path to write a pprof CPU profile to")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var profileBuf bytes.Buffer
	if *profilePath != "" {
		if err := pprof.StartCPUProfile(&profileBuf); err != nil {
			logger.Error("failed to start cpu profile", "error", err)
			os.Exit(1)
		}
	}

	ro := make([]byte, *roSize)
	for i := range ro {
		ro[i] = byte(i)
	}

	opts := pvm.Options{
		ReadOnlyBytes:     ro,
		StackBytes:        uint32(*stackBytes),
		HeapPages:         uint32(*heapPages),
		DynamicAllocation: true,
	}

	paged, err := pvm.NewPaged(opts)
	if err != nil {
		logger.Error("failed to construct paged engine", "error", err)
		os.Exit(1)
	}
	flat, err := pvm.NewFlat(opts)
	if err != nil {
		logger.Error("failed to construct flat engine", "error", err)
		os.Exit(1)
	}

	if old := paged.Sbrk(uint32(*sbrkBytes)); old == 0 {
		logger.Warn("paged sbrk returned 0", "requested", *sbrkBytes)
	}
	if old := flat.Sbrk(uint32(*sbrkBytes)); old == 0 {
		logger.Warn("flat sbrk returned 0", "requested", *sbrkBytes)
	}

	pagedSnap, err := paged.Snapshot()
	if err != nil {
		logger.Error("failed to snapshot paged engine", "error", err)
		os.Exit(1)
	}
	flatSnap, err := flat.Snapshot()
	if err != nil {
		logger.Error("failed to snapshot flat engine", "error", err)
		os.Exit(1)
	}

	if *profilePath != "" {
		pprof.StopCPUProfile()
		if err := writeProfile(*profilePath, profileBuf.Bytes(), logger); err != nil {
			logger.Error("failed to write profile", "path", *profilePath, "error", err)
			os.Exit(1)
		}
	}

	diffs := memsnap.Diff(pagedSnap, flatSnap)
	if len(diffs) == 0 {
		logger.Info("snapshots agree", "regions", len(pagedSnap.Regions))
		fmt.Println("OK: paged and flat snapshots are equivalent")
		return
	}

	logger.Error("snapshots diverge", "count", len(diffs))
	for _, d := range diffs {
		fmt.Println(d)
	}
	os.Exit(1)
}

// writeProfile persists the raw CPU profile to path and logs a one-line
// summary parsed back via github.com/google/pprof/profile.
func writeProfile(path string, raw []byte, logger *slog.Logger) error {
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return err
	}
	p, err := profile.ParseData(raw)
	if err != nil {
		return err
	}
	logger.Info("captured cpu profile",
		"path", path,
		"duration_ns", p.DurationNanos,
		"samples", len(p.Sample),
		"sample_types", len(p.SampleType),
	)
	return nil
}
