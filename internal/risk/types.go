package risk

// VaRResult VaR 계산 결과
// ⭐ SSOT: VaR/CVaR는 손실을 양수로 표현
// - VaR=0.05 → 95% 신뢰수준에서 최대 5% 손실 가능
// - CVaR=0.07 → 5% tail에서 평균 7% 손실 예상
type VaRResult struct {
	Confidence float64 `json:"confidence"` // 신뢰수준 (예: 0.95, 0.99)
	VaR        float64 `json:"var"`        // Value at Risk (손실, 양수)
	CVaR       float64 `json:"cvar"`       // Conditional VaR (Expected Shortfall, 양수)
	Samples    int     `json:"samples"`
}

// Breaches reports whether the result exceeds the given loss limits
func (r VaRResult) Breaches(maxVaR, maxCVaR float64) bool {
	return r.VaR > maxVaR || r.CVaR > maxCVaR
}

// Interval two-sided credible/confidence interval
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Width upper - lower
func (i Interval) Width() float64 {
	return i.Upper - i.Lower
}
