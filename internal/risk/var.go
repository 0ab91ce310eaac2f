package risk

import (
	"math"
	"sort"
)

// =============================================================================
// VaR (Value at Risk) Calculation
// =============================================================================

// CalculateVaR 과거 수익률 기반 VaR 계산 (Historical Simulation)
// returns: 청산된 거래 수익률 (양수=이익, 음수=손실)
// confidence: 신뢰수준 (예: 0.95, 0.99)
// 반환값: VaR는 손실을 양수로 표현 (예: 0.05 = 5% 손실 가능)
func CalculateVaR(returns []float64, confidence float64) VaRResult {
	sorted := finiteSorted(returns)
	if len(sorted) == 0 {
		return VaRResult{Confidence: confidence}
	}

	// VaR: (1-confidence) 백분위수 (손실이 앞에)
	idx := int(math.Floor((1.0 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}

	return VaRResult{
		Confidence: confidence,
		VaR:        lossOf(sorted[idx]),
		CVaR:       CalculateCVaR(sorted, idx),
		Samples:    len(sorted),
	}
}

// CalculateCVaR Conditional VaR (Expected Shortfall)
// sorted: 오름차순 정렬된 수익률, varIdx 이하가 tail
func CalculateCVaR(sorted []float64, varIdx int) float64 {
	if len(sorted) == 0 || varIdx < 0 {
		return 0
	}
	if varIdx >= len(sorted) {
		varIdx = len(sorted) - 1
	}

	var sum float64
	for i := 0; i <= varIdx; i++ {
		sum += sorted[i]
	}
	return lossOf(sum / float64(varIdx+1))
}

// CalculateParametricVaR 정규분포 가정 VaR
// 표본이 부족할 때 참고치로만 사용
func CalculateParametricVaR(mean, stdDev, confidence float64) VaRResult {
	z := NormInv(confidence)

	varValue := math.Max(0, z*stdDev-mean)

	// CVaR ≈ -mean + stdDev * φ(z) / (1-confidence)
	cvar := math.Max(0, stdDev*NormPDF(z)/(1-confidence)-mean)

	return VaRResult{
		Confidence: confidence,
		VaR:        varValue,
		CVaR:       cvar,
	}
}

func lossOf(r float64) float64 {
	if r < 0 {
		return -r
	}
	return 0
}

func finiteSorted(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}
