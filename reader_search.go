package covertree

import (
	"container/heap"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// Neighbor is one nearest-neighbor result: a point index and its distance
// from the query.
type Neighbor struct {
	Distance float32
	Index    uint32
}

// ============================================================================
// HEAP POOLS FOR ALLOCATION OPTIMIZATION
// ============================================================================

// resultHeapPool pools the k-best max-heaps; KNN is typically called in
// tight loops (trackers run one dry traversal plus queries per stream
// point), so reusing the backing arrays avoids per-call allocations.
var resultHeapPool = sync.Pool{
	New: func() interface{} {
		h := &resultHeap{}
		heap.Init(h)
		return h
	},
}

// frontierHeapPool pools the node frontier min-heaps.
var frontierHeapPool = sync.Pool{
	New: func() interface{} {
		h := &frontierHeap{}
		heap.Init(h)
		return h
	},
}

// ============================================================================
// KNN
// ============================================================================

// KNN returns the k nearest points to the query, ascending by distance,
// ties broken by ascending point index. The result holds min(k, N) entries;
// k = 0 yields an empty slice. The search is a best-first branch-and-bound
// descent: a child subtree is visited only if its covering radius plus the
// current k-th best distance could still contain a closer point, which the
// covering and separation invariants make exact for true metrics.
func (r *CoverTreeReader) KNN(point []float32, k int) ([]Neighbor, error) {
	if len(point) != r.cloud.Dim() {
		return nil, fmt.Errorf("%w: point has %d dimensions, tree has %d", ErrDimensionMismatch, len(point), r.cloud.Dim())
	}
	if k <= 0 {
		return []Neighbor{}, nil
	}

	results := newResultHeap()
	defer putResultHeap(results)
	frontier := newFrontierHeap()
	defer putFrontierHeap(frontier)

	// centers reappear one scale down along nesting chains; dedupe offers
	offered := roaring.New()

	rootDist := r.distance.Calculate(point, r.cloud.PointAt(int(r.root.Index)))
	heap.Push(frontier, frontierItem{
		addr:       r.root,
		lowerBound: lowerBound(rootDist, r.nodeRadius(r.root)),
		centerDist: rootDist,
	})

	for frontier.Len() > 0 {
		item := heap.Pop(frontier).(frontierItem)
		if results.Len() == k && item.lowerBound > (*results)[0].Distance {
			break
		}
		node, ok := r.nodeFor(item.addr)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, item.addr)
		}

		results.offer(Neighbor{Distance: item.centerDist, Index: node.address.Index}, k, offered)
		it := node.singletons.Iterator()
		for it.HasNext() {
			pi := it.Next()
			d := r.distance.Calculate(point, r.cloud.PointAt(int(pi)))
			results.offer(Neighbor{Distance: d, Index: pi}, k, offered)
		}

		for _, child := range node.children {
			cd := r.distance.Calculate(point, r.cloud.PointAt(int(child.Index)))
			lb := lowerBound(cd, r.nodeRadius(child))
			if results.Len() == k && lb > (*results)[0].Distance {
				continue
			}
			heap.Push(frontier, frontierItem{addr: child, lowerBound: lb, centerDist: cd})
		}
	}

	out := make([]Neighbor, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(Neighbor)
	}
	return out, nil
}

// nodeRadius returns the tightest known bound on how far any point covered
// by the node can lie from its representative: the exact summary radius when
// present, otherwise the geometric covering radius of the node's scale.
func (r *CoverTreeReader) nodeRadius(addr NodeAddress) float32 {
	if n, ok := r.nodeFor(addr); ok && n.summary != nil {
		return n.summary.radius
	}
	return r.params.scaleRadius(addr.Scale)
}

func lowerBound(centerDist, radius float32) float32 {
	if centerDist <= radius {
		return 0
	}
	return centerDist - radius
}

// ============================================================================
// HEAP STRUCTURES FOR EFFICIENT SEARCH
// ============================================================================

// resultHeap is a max-heap of the k best neighbors (worst on top), so the
// worst candidate can be evicted in O(log k) when a better one appears.
// Ordering treats equal distances by point index for determinism.
type resultHeap []Neighbor

func (h resultHeap) Len() int { return len(h) }
func (h resultHeap) Less(i, j int) bool {
	if h[i].Distance != h[j].Distance {
		return h[i].Distance > h[j].Distance
	}
	return h[i].Index > h[j].Index
}
func (h resultHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x interface{}) {
	*h = append(*h, x.(Neighbor))
}

func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// offer inserts the candidate unless it was already seen or is worse than
// the current k-th best.
func (h *resultHeap) offer(n Neighbor, k int, offered *roaring.Bitmap) {
	if offered.Contains(n.Index) {
		return
	}
	offered.Add(n.Index)
	if h.Len() < k {
		heap.Push(h, n)
		return
	}
	worst := (*h)[0]
	if n.Distance < worst.Distance || (n.Distance == worst.Distance && n.Index < worst.Index) {
		heap.Pop(h)
		heap.Push(h, n)
	}
}

func newResultHeap() *resultHeap {
	return resultHeapPool.Get().(*resultHeap)
}

func putResultHeap(h *resultHeap) {
	*h = (*h)[:0]
	resultHeapPool.Put(h)
}

// frontierItem is a node pending descent, ordered by the lower bound on the
// distance from the query to any point the node's subtree can hold.
type frontierItem struct {
	addr       NodeAddress
	lowerBound float32
	centerDist float32
}

// frontierHeap is a min-heap of pending nodes (most promising on top).
type frontierHeap []frontierItem

func (h frontierHeap) Len() int { return len(h) }
func (h frontierHeap) Less(i, j int) bool {
	if h[i].lowerBound != h[j].lowerBound {
		return h[i].lowerBound < h[j].lowerBound
	}
	return h[i].centerDist < h[j].centerDist
}
func (h frontierHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *frontierHeap) Push(x interface{}) {
	*h = append(*h, x.(frontierItem))
}

func (h *frontierHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

func newFrontierHeap() *frontierHeap {
	return frontierHeapPool.Get().(*frontierHeap)
}

func putFrontierHeap(h *frontierHeap) {
	*h = (*h)[:0]
	frontierHeapPool.Put(h)
}
