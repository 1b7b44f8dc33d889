// Package crawler implements C9: the BFS crawl session — frontier
// management, depth/page budgets, robots compliance and dedup. The
// frontier queue is a container/heap priority queue grounded on the
// teacher's URLQueue (internal/services/crawler/queue.go), but ordered
// strictly by depth-then-insertion so traversal is provably breadth-first
// (spec.md's safe default over the teacher's priority-plus-depth scheme).
package crawler

import (
	"container/heap"
	"context"
	"sync"
)

// frontierItem is one pending URL in the crawl frontier.
type frontierItem struct {
	URL      string
	Depth    int
	seq      int64 // insertion order, breaks ties for strict BFS
}

type frontierHeap []*frontierItem

func (h frontierHeap) Len() int { return len(h) }
func (h frontierHeap) Less(i, j int) bool {
	if h[i].Depth != h[j].Depth {
		return h[i].Depth < h[j].Depth
	}
	return h[i].seq < h[j].seq
}
func (h frontierHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *frontierHeap) Push(x any)   { *h = append(*h, x.(*frontierItem)) }
func (h *frontierHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// frontier is a depth-ordered, deduplicated URL queue. Safe for
// concurrent use by multiple worker goroutines. outstanding tracks items
// that have been pushed but not yet finished processing (popped and then
// marked done via release), so pop can block workers until either new
// work arrives or every worker has gone idle with nothing left to do —
// avoiding the premature-termination race a plain "queue looks empty"
// check would have during a momentary lull between a pop and the pushes
// that pop's own processing produces.
type frontier struct {
	mu          sync.Mutex
	cond        *sync.Cond
	items       *frontierHeap
	seen        map[string]bool
	nextSeq     int64
	outstanding int
	closed      bool
}

func newFrontier() *frontier {
	h := &frontierHeap{}
	heap.Init(h)
	f := &frontier{items: h, seen: make(map[string]bool)}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// push adds url at depth if not already seen (by canonical string). Returns
// false if the URL was a duplicate.
func (f *frontier) push(url string, depth int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.seen[url] {
		return false
	}
	f.seen[url] = true
	f.outstanding++
	heap.Push(f.items, &frontierItem{URL: url, Depth: depth, seq: f.nextSeq})
	f.nextSeq++
	f.cond.Broadcast()
	return true
}

// pop blocks until an item is available, the frontier has fully drained
// (no queued items and nothing outstanding), or ctx is done. ok is false
// only in the drained/cancelled case.
func (f *frontier) pop(ctx context.Context) (*frontierItem, bool) {
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			f.mu.Lock()
			f.cond.Broadcast()
			f.mu.Unlock()
		case <-stopWatch:
		}
	}()

	f.mu.Lock()
	defer f.mu.Unlock()

	for f.items.Len() == 0 {
		if f.outstanding == 0 || f.closed || ctx.Err() != nil {
			return nil, false
		}
		f.cond.Wait()
	}
	return heap.Pop(f.items).(*frontierItem), true
}

// release marks one outstanding item as finished (its own processing,
// including any child URLs it pushed, is complete), waking any worker
// blocked in pop waiting to learn the frontier has drained.
func (f *frontier) release() {
	f.mu.Lock()
	f.outstanding--
	f.cond.Broadcast()
	f.mu.Unlock()
}

// close unblocks every waiting pop immediately, e.g. on budget exhaustion.
func (f *frontier) close() {
	f.mu.Lock()
	f.closed = true
	f.cond.Broadcast()
	f.mu.Unlock()
}

// len reports the number of unprocessed frontier items.
func (f *frontier) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items.Len()
}

// seenCount reports how many distinct URLs have ever entered the frontier.
func (f *frontier) seenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}
