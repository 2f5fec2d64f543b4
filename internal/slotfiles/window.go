// Package slotfiles - window.go streams slot downloads under a fixed
// concurrency window.
//
// DESIGN: Two wrong shapes to avoid. Launching every download up front
// behind a semaphore lets finished artifacts pile up faster than the
// caller drains them; one-at-a-time downloading wastes the line. The
// pool below holds the window at exactly N: a worker blocks on the
// unbuffered output channel until the caller takes its artifact, and
// only then dequeues another URL. Peak residency stays at N artifacts
// no matter how slowly the caller iterates.
package slotfiles

import (
	"context"
	"iter"
	"sync"

	"github.com/gdeltkit/gdelt-go/internal/gdelterr"
	"github.com/gdeltkit/gdelt-go/models"
)

// Artifact is the decompressed contents of one slot file.
type Artifact struct {
	Slot Slot
	URL  string
	Body []byte
}

type result struct {
	art Artifact
	err error
}

// Stream downloads every enumerated slot with at most `window`
// concurrent transfers, yielding artifacts in completion order. Absent
// slots yield nothing. Failed slots yield a nil-Body artifact naming
// the slot alongside the error; the caller's policy decides what
// happens next. Breaking out of the loop cancels in-flight downloads
// and waits for the workers to exit.
func (f *Fetcher) Stream(ctx context.Context, t models.RecordType, urls iter.Seq[SlotURL]) iter.Seq2[Artifact, error] {
	return func(yield func(Artifact, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		in := make(chan SlotURL)
		out := make(chan result)

		var wg sync.WaitGroup
		for range f.window {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for su := range in {
					art, err := f.Fetch(ctx, t, su)
					if gdelterr.IsAbsent(err) {
						continue
					}
					select {
					case out <- result{art: art, err: err}:
					case <-ctx.Done():
						return
					}
				}
			}()
		}

		go func() {
			defer close(in)
			for su := range urls {
				select {
				case in <- su:
				case <-ctx.Done():
					return
				}
			}
		}()

		go func() {
			wg.Wait()
			close(out)
		}()

		for r := range out {
			if !yield(r.art, r.err) {
				cancel()
				// Drain until the workers notice; keeps goroutines from
				// blocking on a send nobody will receive.
				for range out {
				}
				return
			}
		}
	}
}
