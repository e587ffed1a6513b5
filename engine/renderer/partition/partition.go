// Package partition divides a per-frame item sequence into contiguous,
// balanced ranges, one per render worker.
package partition

import "fmt"

// Range returns the half-open interval [begin, end) of items owned by worker id
// when total items are split across workers. Workers with id < total%workers
// receive one extra item, so range sizes never differ by more than one and the
// ranges cover [0, total) in ascending worker order without gaps or overlaps.
//
// Range panics when workers < 1, total < 0 or id is outside [0, workers).
//
// Parameters:
//   - id: the worker index
//   - total: the number of items in the frame
//   - workers: the number of workers sharing the items
//
// Returns:
//   - int: first item index owned by the worker
//   - int: one past the last item index owned by the worker
func Range(id, total, workers int) (int, int) {
	if workers < 1 {
		panic(fmt.Sprintf("partition: workers = %d, must be >= 1", workers))
	}
	if total < 0 {
		panic(fmt.Sprintf("partition: total = %d, must be >= 0", total))
	}
	if id < 0 || id >= workers {
		panic(fmt.Sprintf("partition: id %d out of range [0, %d)", id, workers))
	}

	base := total / workers
	rem := total % workers
	begin := base*id + min(id, rem)
	end := begin + base
	if id < rem {
		end++
	}
	return begin, end
}

// IsLast reports whether id is the final worker of the pool.
func IsLast(id, workers int) bool {
	return id == workers-1
}

// Total sums group sizes.
func Total(sizes []int) int {
	n := 0
	for _, s := range sizes {
		n += s
	}
	return n
}

// ForEachInRange walks groups in order over the virtual concatenation of all
// group sizes and calls fn for every item whose global index falls inside
// [begin, end). fn receives the group index, the item's index local to that
// group and its global index. The concatenation is never materialised.
//
// Parameters:
//   - sizes: item count per group, in snapshot order
//   - begin: first global index to visit
//   - end: one past the last global index to visit
//   - fn: callback invoked once per item in the intersection
//
// Returns:
//   - int: the number of items visited
func ForEachInRange(sizes []int, begin, end int, fn func(group, local, global int)) int {
	if begin >= end {
		return 0
	}

	visited := 0
	offset := 0
	for g, size := range sizes {
		if offset >= end {
			break
		}
		lo := 0
		hi := size
		if offset < begin {
			lo = min(size, begin-offset)
		}
		if offset+size > end {
			hi = min(size, end-offset)
		}
		for i := lo; i < hi; i++ {
			fn(g, i, offset+i)
			visited++
		}
		offset += size
	}
	return visited
}
