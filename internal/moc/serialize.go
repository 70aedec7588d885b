package moc

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jaennil/guide_helper/backend/hips/pkg/healpix"
)

// String renders the MOC in the IVOA ASCII serialization, for example
// "3/10 4/40-43 9/". An empty trailing order records the max order.
func (m *MOC) String() string {
	byOrder := m.byOrder()
	orders := make([]int, 0, len(byOrder))
	for o := range byOrder {
		orders = append(orders, int(o))
	}
	sort.Ints(orders)

	var sb strings.Builder
	for _, o := range orders {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d/", o)
		pix := byOrder[uint8(o)]
		for i := 0; i < len(pix); {
			j := i
			for j+1 < len(pix) && pix[j+1] == pix[j]+1 {
				j++
			}
			if i > 0 {
				sb.WriteByte(',')
			}
			if j > i {
				fmt.Fprintf(&sb, "%d-%d", pix[i], pix[j])
			} else {
				fmt.Fprintf(&sb, "%d", pix[i])
			}
			i = j + 1
		}
	}
	if _, ok := byOrder[m.maxOrder]; !ok {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d/", m.maxOrder)
	}
	return sb.String()
}

func (m *MOC) byOrder() map[uint8][]uint64 {
	out := make(map[uint8][]uint64)
	for _, c := range m.normalizedCells() {
		out[c.Order] = append(out[c.Order], c.Pixel)
	}
	for _, pix := range out {
		sort.Slice(pix, func(i, j int) bool { return pix[i] < pix[j] })
	}
	return out
}

// ParseASCII reads the IVOA ASCII serialization. Separators may be spaces or
// commas. The max order is the deepest order mentioned.
func ParseASCII(s string, frame Frame) (*MOC, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\n' || r == '\t'
	})

	type cell struct {
		order      uint8
		start, end uint64
	}
	var cells []cell
	var maxOrder uint8
	order := -1
	for _, f := range fields {
		if idx := strings.IndexByte(f, '/'); idx >= 0 {
			o, err := strconv.ParseUint(f[:idx], 10, 8)
			if err != nil {
				return nil, fmt.Errorf("%w: bad order %q", ErrInvalidCell, f[:idx])
			}
			order = int(o)
			if uint8(o) > maxOrder {
				maxOrder = uint8(o)
			}
			f = f[idx+1:]
			if f == "" {
				continue
			}
		}
		if order < 0 {
			return nil, fmt.Errorf("%w: pixel %q before any order", ErrInvalidCell, f)
		}
		lo, hi, found := strings.Cut(f, "-")
		start, err := strconv.ParseUint(lo, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad pixel %q", ErrInvalidCell, lo)
		}
		end := start
		if found {
			if end, err = strconv.ParseUint(hi, 10, 64); err != nil || end < start {
				return nil, fmt.Errorf("%w: bad pixel range %q", ErrInvalidCell, f)
			}
		}
		cells = append(cells, cell{uint8(order), start, end})
	}

	m, err := New(maxOrder, frame)
	if err != nil {
		return nil, err
	}
	// ranges go straight to deepest-order intervals so that a wide range
	// costs the same as a single cell
	rs := make([]interval, len(cells))
	for i, c := range cells {
		if c.end >= healpix.NPix(c.order) {
			return nil, fmt.Errorf("%w: pixel %d out of range at order %d", ErrInvalidCell, c.end, c.order)
		}
		shift := 2 * uint64(depth-c.order)
		rs[i] = interval{c.start << shift, (c.end + 1) << shift}
	}
	m.cells = fromRanges(mergeRanges(rs))
	return m, nil
}

// MarshalJSON writes the IVOA JSON serialization: {"order":[pixels...]}.
func (m *MOC) MarshalJSON() ([]byte, error) {
	out := make(map[string][]uint64)
	for o, pix := range m.byOrder() {
		out[strconv.Itoa(int(o))] = pix
	}
	if _, ok := out[strconv.Itoa(int(m.maxOrder))]; !ok {
		out[strconv.Itoa(int(m.maxOrder))] = []uint64{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the IVOA JSON serialization in the ICRS frame unless
// the receiver already carries a frame.
func (m *MOC) UnmarshalJSON(data []byte) error {
	var in map[string][]uint64
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var maxOrder uint8
	for k := range in {
		o, err := strconv.ParseUint(k, 10, 8)
		if err != nil {
			return fmt.Errorf("%w: bad order %q", ErrInvalidCell, k)
		}
		if uint8(o) > maxOrder {
			maxOrder = uint8(o)
		}
	}
	out, err := New(maxOrder, m.frame)
	if err != nil {
		return err
	}
	for k, pix := range in {
		o, _ := strconv.ParseUint(k, 10, 8)
		for _, p := range pix {
			if err := out.Add(uint8(o), p); err != nil {
				return err
			}
		}
	}
	*m = *out.Normalize()
	return nil
}
