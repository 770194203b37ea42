package suffixmerge

import "fmt"

// Range is a half-open interval [Start, End) of entries in one partial table.
type Range struct {
	Start, End int64
}

func (r Range) Len() int64 { return r.End - r.Start }

// Partition is the work of one merge worker: one Range per partial table.
// Merging the ranges of partition i by suffix yields a contiguous slice of
// the final suffix array, and every suffix of partition i sorts before every
// suffix of partition i+1.
type Partition struct {
	Index  int
	Ranges []Range
}

// PlanPartitions splits the partial tables into threads partitions.
//
// Cut points are taken at near-equal intervals of table 0. The suffix at each
// cut (the pivot) is then located in every other table by binary search, so
// all tables are cut at the same point in suffix order. The last partition
// takes whatever remains.
func PlanPartitions(texts [][]byte, tables []*Table, threads int) ([]Partition, error) {
	if threads < 1 {
		return nil, ErrInvalidThreads
	}
	if len(tables) == 0 {
		return nil, ErrNoParts
	}
	if len(texts) != len(tables) {
		return nil, fmt.Errorf("suffixmerge: %d texts for %d tables", len(texts), len(tables))
	}

	var (
		n      = len(tables)
		t      = int64(threads)
		len0   = tables[0].Len()
		starts = make([]int64, n)
		parts  = make([]Partition, threads)
	)
	for i := range parts {
		ends := make([]int64, n)
		end0 := (len0 + t) / t * int64(i+1)
		if i < threads-1 && end0 < len0 {
			pivot, err := tables[0].suffix(texts[0], end0)
			if err != nil {
				return nil, err
			}
			ends[0] = end0
			for j := 1; j < n; j++ {
				if ends[j], err = tables[j].Locate(texts[j], pivot); err != nil {
					return nil, err
				}
			}
		} else {
			// Last partition, or table 0 already used up: take the rest.
			for j := range ends {
				ends[j] = tables[j].Len()
			}
		}

		ranges := make([]Range, n)
		for j := range ranges {
			ranges[j] = Range{Start: starts[j], End: ends[j]}
		}
		parts[i] = Partition{Index: i, Ranges: ranges}
		starts = ends
	}
	return parts, nil
}
