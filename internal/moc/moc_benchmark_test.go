package moc

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/jaennil/guide_helper/backend/hips/pkg/healpix"
)

func BenchmarkAlgebra(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		r := rand.New(rand.NewSource(int64(n)))
		x := randomMOC(b, r, 12, n)
		y := randomMOC(b, r, 12, n)

		for _, op := range []Op{OpUnion, OpIntersection, OpDifference} {
			b.Run(fmt.Sprintf("%s/%d", op, n), func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					if _, err := apply(op, x, y); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkContains(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	m := randomMOC(b, r, 10, 5000)
	points := make([]healpix.Point, 1024)
	for i := range points {
		points[i] = healpix.Point{Lon: r.Float64() * 360, Lat: r.Float64()*180 - 90}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Contains(points[i%len(points)])
	}
}

func BenchmarkReduction(b *testing.B) {
	r := rand.New(rand.NewSource(2))
	m := randomMOC(b, r, 14, 20000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Reduction(500); err != nil {
			b.Fatal(err)
		}
	}
}
