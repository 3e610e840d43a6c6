package fbank

import "math"

// filter is one triangular mel filter stored as a dense weight span
// starting at FFT bin lo.
type filter struct {
	lo      int
	weights []float64
}

func (f filter) apply(power []float64) float64 {
	var sum float64
	for i, w := range f.weights {
		sum += w * power[f.lo+i]
	}
	return sum
}

func hammingWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// hzToMel uses the HTK mel scale.
func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// melFilterBank builds numMels triangular filters over fftSize/2+1 bins.
// Every filter spans at least two bins so none is empty.
func melFilterBank(numMels, fftSize, sampleRate int, lowHz, highHz float64) []filter {
	bins := fftSize/2 + 1
	lo, hi := hzToMel(lowHz), hzToMel(highHz)
	step := (hi - lo) / float64(numMels+1)

	edges := make([]int, numMels+2)
	for i := range edges {
		hz := melToHz(lo + float64(i)*step)
		b := int(math.Round(hz * float64(fftSize) / float64(sampleRate)))
		if i > 0 && b <= edges[i-1] {
			b = edges[i-1] + 1
		}
		edges[i] = min(b, bins-1)
	}

	bank := make([]filter, numMels)
	for m := range bank {
		left, center, right := edges[m], edges[m+1], edges[m+2]
		if right <= left {
			right = left + 1
		}
		w := make([]float64, right-left+1)
		for k := left; k <= right; k++ {
			switch {
			case k < center && center > left:
				w[k-left] = float64(k-left) / float64(center-left)
			case k == center:
				w[k-left] = 1
			case k > center && right > center:
				w[k-left] = float64(right-k) / float64(right-center)
			}
		}
		bank[m] = filter{lo: left, weights: w}
	}
	return bank
}
