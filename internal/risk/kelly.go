package risk

import "math"

// MaxKellyFraction 풀 켈리 상한
const MaxKellyFraction = 0.25

// KellyFraction f* = (p·b − q) / b, capped at maxFraction and floored at 0
// p: 승률, b: 승리 시 수익 배수 (expected return)
func KellyFraction(p, b, maxFraction float64) float64 {
	if b <= 0 || math.IsNaN(b) || math.IsInf(b, 0) {
		return 0
	}
	p = Clamp(p, 0, 1)
	q := 1 - p

	f := (p*b - q) / b
	if maxFraction > 0 {
		f = math.Min(f, maxFraction)
	}
	return math.Max(0, f)
}
