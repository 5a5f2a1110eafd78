package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/ballotharvest/internal/model"
)

// TestBatchProcessorNew tests the BatchProcessor constructor.
func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	factory := func(int, string) *Pipeline { return New() }

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(model.SourceTree, factory)
		if bp.concurrency != DefaultBatchConcurrency {
			t.Errorf("expected default concurrency %d, got %d", DefaultBatchConcurrency, bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies WithConcurrency option", func(t *testing.T) {
		t.Parallel()

		if bp := NewBatchProcessor(model.SourceTree, factory, WithConcurrency(2)); bp.concurrency != 2 {
			t.Errorf("expected concurrency 2, got %d", bp.concurrency)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		if bp := NewBatchProcessor(model.SourceTree, factory, WithConcurrency(0)); bp.concurrency != DefaultBatchConcurrency {
			t.Errorf("expected default concurrency, got %d", bp.concurrency)
		}
	})
}

// rowStep appends one row naming the root, so reports can be told apart.
func rowStep(delay time.Duration) *mockStep {
	return &mockStep{name: "harvest", doFunc: func(_ context.Context, report *model.HarvestReport) error {
		time.Sleep(delay)
		return report.Rows.Append(model.ResultRow{report.RootURL, 1, "Jane Doe", 1})
	}}
}

// TestBatchProcessorProcessBatch tests concurrent harvesting of several roots.
func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("returns reports in input order", func(t *testing.T) {
		t.Parallel()

		roots := []string{"http://a.example/", "http://b.example/", "http://c.example/"}
		delays := []time.Duration{30 * time.Millisecond, 0, 10 * time.Millisecond}

		bp := NewBatchProcessor(model.SourceTree, func(i int, _ string) *Pipeline {
			p := New()
			p.AddStep(rowStep(delays[i]))
			return p
		}, WithConcurrency(3))

		reports, err := bp.ProcessBatch(context.Background(), roots)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(reports) != len(roots) {
			t.Fatalf("expected %d reports, got %d", len(roots), len(reports))
		}
		for i, r := range reports {
			if r.RootURL != roots[i] {
				t.Errorf("report %d: root %q, want %q", i, r.RootURL, roots[i])
			}
			if r.Source != model.SourceTree {
				t.Errorf("report %d: source %q", i, r.Source)
			}
			if r.Rows.Len() != 1 || r.Rows.Rows()[0][0] != roots[i] {
				t.Errorf("report %d: unexpected rows %v", i, r.Rows.Rows())
			}
		}
	})

	t.Run("a failed root does not stop the others", func(t *testing.T) {
		t.Parallel()

		roots := []string{"http://ok.example/", "http://bad.example/", "http://ok2.example/"}
		bp := NewBatchProcessor(model.SourceTree, func(_ int, root string) *Pipeline {
			p := New()
			if root == "http://bad.example/" {
				p.AddStep(&mockStep{name: "harvest", doFunc: func(context.Context, *model.HarvestReport) error {
					return errors.New("unreachable")
				}})
			} else {
				p.AddStep(rowStep(0))
			}
			return p
		})

		reports, err := bp.ProcessBatch(context.Background(), roots)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reports[1].Failed() {
			t.Error("expected the bad root to fail")
		}
		if reports[0].Failed() || reports[2].Failed() {
			t.Error("expected the other roots to succeed")
		}
	})

	t.Run("respects the concurrency limit", func(t *testing.T) {
		t.Parallel()

		var running, peak atomic.Int32
		bp := NewBatchProcessor(model.SourceTree, func(int, string) *Pipeline {
			p := New()
			p.AddStep(&mockStep{name: "harvest", doFunc: func(context.Context, *model.HarvestReport) error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				running.Add(-1)
				return nil
			}})
			return p
		}, WithConcurrency(2))

		roots := []string{"http://1/", "http://2/", "http://3/", "http://4/", "http://5/"}
		if _, err := bp.ProcessBatch(context.Background(), roots); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("expected at most 2 concurrent runs, saw %d", peak.Load())
		}
	})

	t.Run("cancelled context returns an error", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		bp := NewBatchProcessor(model.SourceTree, func(int, string) *Pipeline { return New() })
		_, err := bp.ProcessBatch(ctx, []string{"http://a.example/"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(model.SourceTree, func(int, string) *Pipeline { return New() })
		reports, err := bp.ProcessBatch(context.Background(), nil)
		if err != nil || len(reports) != 0 {
			t.Errorf("expected no reports and no error, got %v, %v", reports, err)
		}
	})
}

// TestBatchProcessorProcessBatchWithCallback tests streaming completion callbacks.
func TestBatchProcessorProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	roots := []string{"http://a.example/", "http://b.example/"}
	bp := NewBatchProcessor(model.SourcePostback, func(int, string) *Pipeline {
		p := New()
		p.AddStep(&mockStep{name: "harvest"})
		return p
	})

	var mu sync.Mutex
	seen := make(map[int]string)
	err := bp.ProcessBatchWithCallback(context.Background(), roots, func(report *model.HarvestReport, index int) {
		mu.Lock()
		defer mu.Unlock()
		seen[index] = report.RootURL
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 2 || seen[0] != roots[0] || seen[1] != roots[1] {
		t.Errorf("unexpected callbacks %v", seen)
	}
}
