package moc

import (
	"math/bits"
	"sort"

	"github.com/jaennil/guide_helper/backend/hips/pkg/healpix"
)

// interval is a half-open range of pixels at the deepest order.
type interval struct {
	start, end uint64
}

// toRanges converts cells to sorted, merged intervals. Overlapping and
// adjacent cells collapse into one interval.
func toRanges(cells []healpix.Address) []interval {
	if len(cells) == 0 {
		return nil
	}
	rs := make([]interval, len(cells))
	for i, c := range cells {
		s, e := c.Range(depth)
		rs[i] = interval{s, e}
	}
	return mergeRanges(rs)
}

// mergeRanges sorts rs in place and collapses overlapping and adjacent
// intervals.
func mergeRanges(rs []interval) []interval {
	if len(rs) == 0 {
		return nil
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].start < rs[j].start })
	out := rs[:1]
	for _, r := range rs[1:] {
		last := &out[len(out)-1]
		if r.start <= last.end {
			if r.end > last.end {
				last.end = r.end
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// fromRanges decomposes intervals into maximal aligned cells, in depth-first
// order. This is the canonical minimal representation.
func fromRanges(rs []interval) []healpix.Address {
	out := make([]healpix.Address, 0, len(rs))
	for _, r := range rs {
		s := r.start
		for s < r.end {
			// largest block aligned on s that still fits in the interval
			k := uint64(depth)
			if s != 0 {
				k = uint64(bits.TrailingZeros64(s)) / 2
			}
			if k > depth {
				k = depth
			}
			for k > 0 && s+(1<<(2*k)) > r.end {
				k--
			}
			out = append(out, healpix.Address{Order: uint8(depth - k), Pixel: s >> (2 * k)})
			s += 1 << (2 * k)
		}
	}
	return out
}

// combine sweeps the boundaries of a and b and keeps the segments for which
// keep(inA, inB) holds.
func combine(a, b []interval, keep func(inA, inB bool) bool) []interval {
	out := make([]interval, 0, len(a)+len(b))
	i, j := 0, 0
	var pos uint64
	inA, inB := false, false
	next := func() (uint64, bool) {
		var best uint64
		found := false
		consider := func(v uint64) {
			if v > pos && (!found || v < best) {
				best, found = v, true
			}
		}
		if i < len(a) {
			if inA {
				consider(a[i].end)
			} else {
				consider(a[i].start)
			}
		}
		if j < len(b) {
			if inB {
				consider(b[j].end)
			} else {
				consider(b[j].start)
			}
		}
		return best, found
	}
	update := func() {
		if i < len(a) {
			if !inA && a[i].start == pos {
				inA = true
			}
			if inA && a[i].end == pos {
				inA = false
				i++
				if i < len(a) && a[i].start == pos {
					inA = true
				}
			}
		}
		if j < len(b) {
			if !inB && b[j].start == pos {
				inB = true
			}
			if inB && b[j].end == pos {
				inB = false
				j++
				if j < len(b) && b[j].start == pos {
					inB = true
				}
			}
		}
	}

	update()
	for {
		nxt, ok := next()
		if !ok {
			break
		}
		if keep(inA, inB) {
			if n := len(out); n > 0 && out[n-1].end == pos {
				out[n-1].end = nxt
			} else {
				out = append(out, interval{pos, nxt})
			}
		}
		pos = nxt
		update()
	}
	return out
}
