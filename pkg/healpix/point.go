package healpix

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Point is a sky position in degrees.
type Point struct {
	Lon float64 `json:"lon" yaml:"lon"`
	Lat float64 `json:"lat" yaml:"lat"`
}

var ErrTooManyPixels = errors.New("too many pixels")

var (
	jrll = [12]float64{2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4}
	jpll = [12]float64{1, 3, 5, 7, 0, 2, 4, 6, 1, 3, 5, 7}
)

const (
	halfPi  = math.Pi / 2
	twoPi   = 2 * math.Pi
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi
)

// Distance returns the great-circle angle between a and b in degrees.
func Distance(a, b Point) float64 {
	return angle(a, b) * rad2deg
}

func angle(a, b Point) float64 {
	lat1, lat2 := a.Lat*deg2rad, b.Lat*deg2rad
	dlon := (b.Lon - a.Lon) * deg2rad
	dlat := lat2 - lat1
	// haversine keeps precision for small separations
	h := math.Sin(dlat/2)*math.Sin(dlat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return 2 * math.Asin(math.Min(1, math.Sqrt(h)))
}

// FromPoint returns the address of the pixel containing p at order.
func FromPoint(order uint8, p Point) Address {
	nside := NSide(order)
	ns := float64(nside)
	z := math.Sin(p.Lat * deg2rad)
	za := math.Abs(z)
	phi := math.Mod(p.Lon*deg2rad, twoPi)
	if phi < 0 {
		phi += twoPi
	}
	tt := phi / halfPi
	if tt >= 4 {
		tt = 0
	}

	var face int
	var ix, iy uint64
	if za <= 2.0/3.0 {
		t1 := ns * (0.5 + tt)
		t2 := ns * (z * 0.75)
		jp := uint64(t1 - t2)
		jm := uint64(t1 + t2)
		ifp := jp >> order
		ifm := jm >> order
		switch {
		case ifp == ifm:
			face = int(ifp|4) & 0xf
		case ifp < ifm:
			face = int(ifp)
		default:
			face = int(ifm) + 8
		}
		ix = jm & (nside - 1)
		iy = nside - (jp & (nside - 1)) - 1
	} else {
		ntt := int(tt)
		if ntt > 3 {
			ntt = 3
		}
		tp := tt - float64(ntt)
		tmp := ns * math.Sqrt(3*(1-za))
		jp := uint64(tp * tmp)
		jm := uint64((1 - tp) * tmp)
		if jp > nside-1 {
			jp = nside - 1
		}
		if jm > nside-1 {
			jm = nside - 1
		}
		if z >= 0 {
			face = ntt
			ix = nside - jm - 1
			iy = nside - jp - 1
		} else {
			face = ntt + 8
			ix = jp
			iy = jm
		}
	}
	if face > 11 {
		face = 11
	}
	return Address{Order: order, Pixel: xyfToNest(order, face, ix, iy)}
}

// xyfToPoint maps fractional face coordinates (x, y in [0,1] inside the face)
// to a sky position.
func xyfToPoint(x, y float64, face int) Point {
	jr := jrll[face] - x - y
	var nr, z float64
	switch {
	case jr < 1:
		nr = jr
		z = 1 - nr*nr/3
	case jr > 3:
		nr = 4 - jr
		z = nr*nr/3 - 1
	default:
		nr = 1
		z = (2 - jr) * 2 / 3
	}
	if z > 1 {
		z = 1
	} else if z < -1 {
		z = -1
	}
	tmp := jpll[face]*nr + x - y
	if tmp < 0 {
		tmp += 8
	}
	if tmp >= 8 {
		tmp -= 8
	}
	phi := 0.0
	if math.Abs(nr) > 1e-15 {
		phi = 0.5 * halfPi * tmp / nr
	}
	lon := math.Mod(phi*rad2deg, 360)
	if lon < 0 {
		lon += 360
	}
	return Point{Lon: lon, Lat: math.Asin(z) * rad2deg}
}

// QueryDisc returns every pixel at order intersecting the cone of the given
// radius (degrees) around center, sorted by pixel index. The result is
// conservative: pixels near the boundary may be included.
func QueryDisc(order uint8, center Point, radius float64) []Address {
	out, _ := QueryDiscLimit(order, center, radius, 0)
	return out
}

// QueryDiscLimit is QueryDisc failing with ErrTooManyPixels as soon as more
// than limit pixels match. A limit of 0 disables the check.
func QueryDiscLimit(order uint8, center Point, radius float64, limit int) ([]Address, error) {
	out, err := queryDisc(order, center, radius, limit, false)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pixel < out[j].Pixel })
	return out, nil
}

// QueryDiscCells returns the cone as cells of mixed orders: a cell lying
// entirely inside the cone is returned whole instead of being split down to
// order. Cells come out in depth-first order. A limit of 0 disables the
// ErrTooManyPixels check.
func QueryDiscCells(order uint8, center Point, radius float64, limit int) ([]Address, error) {
	if radius >= 180 {
		out := make([]Address, 12)
		for p := range out {
			out[p] = Address{Order: 0, Pixel: uint64(p)}
		}
		return out, nil
	}
	out, err := queryDisc(order, center, radius, limit, true)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		si, _ := out[i].Range(MaxOrder)
		sj, _ := out[j].Range(MaxOrder)
		return si < sj
	})
	return out, nil
}

func queryDisc(order uint8, center Point, radius float64, limit int, whole bool) ([]Address, error) {
	r := radius * deg2rad
	out := make([]Address, 0)
	full := false
	var walk func(a Address)
	walk = func(a Address) {
		if full {
			return
		}
		d := angle(center, a.Center())
		rad := a.radius()
		if d-rad > r {
			return
		}
		if a.Order == order || (whole && d+rad <= r) {
			out = append(out, a)
			full = limit > 0 && len(out) > limit
			return
		}
		for _, c := range a.Children() {
			walk(c)
		}
	}
	for p := uint64(0); p < 12; p++ {
		walk(Address{Order: 0, Pixel: p})
	}
	if full {
		return nil, fmt.Errorf("%w: cone of %g deg at order %d exceeds %d pixels", ErrTooManyPixels, radius, order, limit)
	}
	// the center pixel always belongs to the cone, even for radius 0
	if own := FromPoint(order, center); !coveredBy(out, own) {
		out = append(out, own)
	}
	return out, nil
}

// coveredBy reports whether a or one of its ancestors is in list.
func coveredBy(list []Address, a Address) bool {
	for _, v := range list {
		if v.Contains(a) {
			return true
		}
	}
	return false
}
