package scan

import (
	"context"
	"runtime"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"procmem/pattern"
	"procmem/process"
)

// ProcessAllParallel is ProcessAll with up to maxdop regions scanned at once.
// Runs of adjacent regions stay on one goroutine so matches crossing their
// boundaries are still found; the result is in address order.
func (s *Scanner) ProcessAllParallel(ctx context.Context, start, end process.ProcessMemoryAddress, p pattern.BytePattern, maxdop int) ([]process.ProcessMemoryAddress, error) {
	if maxdop <= 1 {
		return s.ProcessAll(ctx, start, end, p)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.refresh(); err != nil {
		return nil, err
	}

	if numCPU := runtime.NumCPU(); maxdop > numCPU {
		maxdop = numCPU
		s.log.Debugln("Limiting maxdop to number of CPUs:", maxdop)
	}

	var runs [][]span
	broken := true
	err := s.spans(ctx, uint64(start), uint64(end), p.Len(), func(sp span) (bool, error) {
		if !broken && len(runs) > 0 {
			last := runs[len(runs)-1]
			if last[len(last)-1].to+1 == sp.from {
				runs[len(runs)-1] = append(last, sp)
				return true, nil
			}
		}
		runs = append(runs, []span{sp})
		broken = false
		return true, nil
	}, func() { broken = true })
	if err != nil {
		return nil, err
	}

	s.log.Infoln("Starting parallel memory scan with maxdop=", maxdop, "runs=", len(runs))

	results := make([][]process.ProcessMemoryAddress, len(runs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxdop)

	var mu sync.Mutex
	total := 0
	for i, run := range runs {
		g.Go(func() error {
			var hits []process.ProcessMemoryAddress
			c := &chunker{s: s, p: p, onHit: func(addr process.ProcessMemoryAddress) bool {
				hits = append(hits, addr)
				return true
			}}
			for _, sp := range run {
				if _, err := c.scan(gctx, sp); err != nil {
					return err
				}
			}
			results[i] = hits

			mu.Lock()
			total += len(hits)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.log.Infoln("Parallel scan complete, found", total, "matches")
	return lo.Flatten(results), nil
}
