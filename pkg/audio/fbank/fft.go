package fbank

import "math"

// fft is an in-place iterative radix-2 transform. len(re) == len(im) and
// must be a power of two.
func fft(re, im []float64) {
	n := len(re)
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}
	for size := 2; size <= n; size <<= 1 {
		half := size / 2
		theta := -2 * math.Pi / float64(size)
		for k := 0; k < half; k++ {
			wr, wi := math.Cos(theta*float64(k)), math.Sin(theta*float64(k))
			for s := k; s < n; s += size {
				u, v := s, s+half
				tr := wr*re[v] - wi*im[v]
				ti := wr*im[v] + wi*re[v]
				re[v], im[v] = re[u]-tr, im[u]-ti
				re[u], im[u] = re[u]+tr, im[u]+ti
			}
		}
	}
}
