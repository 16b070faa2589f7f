// Package sampler reports CPU% and RSS for a Runner's child process and
// its transitive descendants, using gopsutil/v4/process.
package sampler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/zalgonoise/bansuri/logging"
)

// Sample is the resource usage total for one Runner's process tree at
// one instant.
type Sample struct {
	CPUPercent float64
	MemoryRSS  uint64
}

// Sampler describes the capability of sampling resource usage for a
// named root PID.
type Sampler interface {
	Sample(ctx context.Context, rootPID int) Sample
}

// Process samples CPU% and RSS via gopsutil, caching per-PID process
// handles between calls so CPU% sampling has the two consecutive reads
// it requires. Dead PIDs are evicted every call; newly discovered PIDs
// are primed with a discarded first sample.
type Process struct {
	logger *slog.Logger

	mu     sync.Mutex
	cached map[int32]*process.Process
}

// New creates a Process sampler.
func New(logger *slog.Logger) *Process {
	if logger == nil {
		logger = slog.New(logging.NoOp())
	}

	return &Process{
		logger: logger,
		cached: make(map[int32]*process.Process),
	}
}

// Sample returns the summed CPU% and RSS of rootPID and every process
// descending from it. A rootPID of 0 (no live child) returns the zero
// Sample. Missing or inaccessible processes contribute 0 and do not
// fail the call; if gopsutil itself is unavailable on this platform the
// whole call degrades to the zero Sample.
func (p *Process) Sample(ctx context.Context, rootPID int) Sample {
	if rootPID <= 0 {
		return Sample{}
	}

	root, err := process.NewProcessWithContext(ctx, int32(rootPID))
	if err != nil {
		p.logger.WarnContext(ctx, "sampler: root process unavailable",
			slog.Int("pid", rootPID), slog.String("error", err.Error()))

		return Sample{}
	}

	pids := []int32{int32(rootPID)}

	// an error here is typically "no children found", not a real
	// failure; descendants are best-effort and simply omitted.
	children, _ := collectDescendants(ctx, root)
	pids = append(pids, children...)

	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[int32]struct{}, len(pids))

	var total Sample

	for _, pid := range pids {
		seen[pid] = struct{}{}

		proc, ok := p.cached[pid]
		if !ok {
			proc, err = process.NewProcessWithContext(ctx, pid)
			if err != nil {
				continue
			}

			p.cached[pid] = proc

			// prime: a freshly seen PID's first CPU% sample is garbage by
			// construction, discard it.
			_, _ = proc.PercentWithContext(ctx, 0)

			continue
		}

		cpuPct, err := proc.PercentWithContext(ctx, 0)
		if err != nil {
			continue
		}

		memInfo, err := proc.MemoryInfoWithContext(ctx)
		if err != nil {
			continue
		}

		total.CPUPercent += cpuPct
		total.MemoryRSS += memInfo.RSS
	}

	for pid := range p.cached {
		if _, ok := seen[pid]; !ok {
			delete(p.cached, pid)
		}
	}

	return total
}

func collectDescendants(ctx context.Context, root *process.Process) ([]int32, error) {
	children, err := root.ChildrenWithContext(ctx)
	if err != nil {
		return nil, err
	}

	pids := make([]int32, 0, len(children))

	for _, child := range children {
		pids = append(pids, child.Pid)

		grandchildren, gerr := collectDescendants(ctx, child)
		if gerr == nil {
			pids = append(pids, grandchildren...)
		}
	}

	return pids, nil
}

// NoOp returns a Sampler whose Sample call always returns the zero
// Sample.
func NoOp() Sampler {
	return noOpSampler{}
}

type noOpSampler struct{}

func (noOpSampler) Sample(context.Context, int) Sample { return Sample{} }
