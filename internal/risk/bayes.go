package risk

import "math"

// =============================================================================
// Bayesian confidence
// =============================================================================

// DefaultConcentration pseudo-count of the Beta distribution around a posterior
const DefaultConcentration = 100.0

// Posterior Bernoulli Bayes update
// evidence = L·p + (1−L)(1−p), posterior = L·p / evidence
func Posterior(likelihood, prior float64) float64 {
	likelihood = Clamp(likelihood, 0, 1)
	prior = Clamp(prior, 0, 1)

	evidence := likelihood*prior + (1-likelihood)*(1-prior)
	if evidence <= 0 {
		return 0
	}
	return likelihood * prior / evidence
}

// WeightedPrior Σ wᵢ·pᵢ / Σ wᵢ (길이가 다르면 짧은 쪽 기준)
func WeightedPrior(priors, weights []float64) float64 {
	n := min(len(priors), len(weights))
	var sum, wsum float64
	for i := 0; i < n; i++ {
		if weights[i] <= 0 {
			continue
		}
		sum += Clamp(priors[i], 0, 1) * weights[i]
		wsum += weights[i]
	}
	if wsum == 0 {
		return 0
	}
	return sum / wsum
}

// InformationGain KL divergence (nats) between Bernoulli(posterior) and Bernoulli(prior)
func InformationGain(prior, posterior float64) float64 {
	if prior <= 0 || prior >= 1 || posterior <= 0 {
		return 0
	}
	kl := posterior * math.Log(posterior/prior)
	if posterior < 1 {
		kl += (1 - posterior) * math.Log((1-posterior)/(1-prior))
	}
	return math.Abs(kl)
}

// BetaInterval two-sided credible interval of Beta(k·p, k·(1−p))
// 정규 근사 사용: 난수 없이 같은 입력이면 같은 구간
func BetaInterval(p, concentration, level float64) Interval {
	p = Clamp(p, 0, 1)
	if concentration <= 0 {
		concentration = DefaultConcentration
	}
	alpha := math.Max(concentration*p, 1)
	beta := math.Max(concentration*(1-p), 1)

	mean := alpha / (alpha + beta)
	sd := math.Sqrt(alpha * beta / ((alpha + beta) * (alpha + beta) * (alpha + beta + 1)))
	z := NormInv(1 - (1-level)/2)

	return Interval{
		Lower: Clamp(mean-z*sd, 0, 1),
		Upper: Clamp(mean+z*sd, 0, 1),
	}
}
