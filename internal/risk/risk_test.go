package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateVaR(t *testing.T) {
	returns := []float64{-0.10, -0.04}
	for i := 0; i < 18; i++ {
		returns = append(returns, 0.01)
	}

	r := CalculateVaR(returns, 0.95)

	assert.Equal(t, 20, r.Samples)
	assert.InDelta(t, 0.04, r.VaR, 1e-9)
	assert.InDelta(t, 0.07, r.CVaR, 1e-9)
	assert.True(t, r.Breaches(0.05, 0.06))
	assert.False(t, r.Breaches(0.05, 0.08))
}

func TestCalculateVaR_LossPositive(t *testing.T) {
	// 손실이 없으면 VaR=0
	r := CalculateVaR([]float64{0.01, 0.02, 0.03}, 0.95)
	assert.Equal(t, 0.0, r.VaR)
	assert.Equal(t, 0.0, r.CVaR)
}

func TestCalculateVaR_IgnoresNonFinite(t *testing.T) {
	r := CalculateVaR([]float64{math.NaN(), -0.02, math.Inf(-1), 0.01}, 0.9)
	assert.Equal(t, 2, r.Samples)
	assert.InDelta(t, 0.02, r.VaR, 1e-9)
}

func TestCalculateVaR_Empty(t *testing.T) {
	r := CalculateVaR(nil, 0.99)
	assert.Equal(t, VaRResult{Confidence: 0.99}, r)
}

func TestCalculateParametricVaR(t *testing.T) {
	r := CalculateParametricVaR(0, 0.02, 0.95)
	assert.InDelta(t, 1.645*0.02, r.VaR, 1e-3)
	assert.Greater(t, r.CVaR, r.VaR)
}

func TestNormInv(t *testing.T) {
	assert.InDelta(t, 0.0, NormInv(0.5), 1e-9)
	assert.InDelta(t, 1.959964, NormInv(0.975), 1e-4)
	assert.InDelta(t, -2.326348, NormInv(0.01), 1e-4)
	assert.Equal(t, 0.0, NormInv(0))
}

func TestMeanStdDev(t *testing.T) {
	v := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(v), 1e-9)
	assert.InDelta(t, 2.138, StdDev(v), 1e-3)
	assert.Equal(t, 0.0, StdDev([]float64{1}))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(math.NaN(), 0, 1))
	assert.Equal(t, 1.0, Clamp(math.Inf(1), 0, 1))
	assert.Equal(t, 0.3, Clamp(0.3, 0, 1))
}

func TestPosterior(t *testing.T) {
	// L=0.95, prior=0.8 → 0.76 / 0.77
	assert.InDelta(t, 0.76/0.77, Posterior(0.95, 0.8), 1e-9)
	// 무정보 prior는 likelihood를 그대로 반환
	assert.InDelta(t, 0.7, Posterior(0.7, 0.5), 1e-9)
	assert.Equal(t, 0.0, Posterior(0, 0))
}

func TestWeightedPrior(t *testing.T) {
	p := WeightedPrior([]float64{0.8, 0.6, 0.9}, []float64{0.4, 0.4, 0.2})
	assert.InDelta(t, 0.74, p, 1e-9)
	assert.Equal(t, 0.0, WeightedPrior(nil, nil))
}

func TestInformationGain(t *testing.T) {
	assert.Equal(t, 0.0, InformationGain(0.5, 0.5))
	assert.Greater(t, InformationGain(0.5, 0.9), InformationGain(0.5, 0.6))
	assert.Equal(t, 0.0, InformationGain(0, 0.5))
	assert.InDelta(t, math.Log(2), InformationGain(0.5, 1.0), 1e-9)
}

func TestBetaInterval(t *testing.T) {
	ci := BetaInterval(0.9, DefaultConcentration, 0.95)

	assert.Less(t, ci.Lower, 0.9)
	assert.Greater(t, ci.Upper, 0.9)
	assert.InDelta(t, 0.9-1.96*math.Sqrt(0.09/101), ci.Lower, 1e-3)

	// 같은 입력 → 같은 구간
	assert.Equal(t, ci, BetaInterval(0.9, DefaultConcentration, 0.95))

	// 집중도가 높을수록 구간이 좁다
	assert.Less(t, BetaInterval(0.9, 1000, 0.95).Width(), ci.Width())

	edge := BetaInterval(1.0, DefaultConcentration, 0.95)
	assert.LessOrEqual(t, edge.Upper, 1.0)
	assert.GreaterOrEqual(t, edge.Lower, 0.0)
}

func TestKellyFraction(t *testing.T) {
	// p=0.6, b=1 → 0.2
	assert.InDelta(t, 0.2, KellyFraction(0.6, 1, MaxKellyFraction), 1e-9)
	// 상한 적용
	assert.Equal(t, MaxKellyFraction, KellyFraction(0.99, 2, MaxKellyFraction))
	// 음의 기대값 → 0
	assert.Equal(t, 0.0, KellyFraction(0.3, 1, MaxKellyFraction))
	assert.Equal(t, 0.0, KellyFraction(0.9, 0, MaxKellyFraction))
}
