package contracts

import (
	"fmt"
	"math"
	"strings"
)

// StrikeType 스트라이크 유형 태그
type StrikeType string

const (
	StrikeMacroArbitrage  StrikeType = "macro_arbitrage"
	StrikeMacroMomentum   StrikeType = "macro_momentum"
	StrikeMacroVolatility StrikeType = "macro_volatility"
	StrikeMacroLiquidity  StrikeType = "macro_liquidity"
	StrikeMacroFunding    StrikeType = "macro_funding"
	StrikeMacroFlash      StrikeType = "macro_flash"
)

// AllStrikeTypes returns every known strike type
func AllStrikeTypes() []StrikeType {
	return []StrikeType{
		StrikeMacroArbitrage,
		StrikeMacroMomentum,
		StrikeMacroVolatility,
		StrikeMacroLiquidity,
		StrikeMacroFunding,
		StrikeMacroFlash,
	}
}

// IsValidStrikeType checks if a strike type string is known
func IsValidStrikeType(s string) bool {
	for _, t := range AllStrikeTypes() {
		if string(t) == s {
			return true
		}
	}
	return false
}

// Strike is a trade proposal awaiting a go/no-go decision
// ⭐ SSOT: 파이프라인에 제출된 이후 값으로만 전달 (immutable)
type Strike struct {
	ID             uint64     `json:"id"`
	Symbol         string     `json:"symbol"`
	Type           StrikeType `json:"type"`
	EntryPrice     float64    `json:"entry_price"`
	TargetPrice    float64    `json:"target_price"`
	StopLoss       float64    `json:"stop_loss"`
	Confidence     float64    `json:"confidence"`      // base confidence (0~1)
	ExpectedReturn float64    `json:"expected_return"` // 예: 0.02 = 2%
	PositionSize   float64    `json:"position_size"`   // quote currency (USD)
}

// IsLong reports whether the strike profits from a rising price
func (s Strike) IsLong() bool {
	return s.TargetPrice >= s.EntryPrice
}

// RewardRiskRatio (target-entry)/(entry-stop) on the strike's direction.
// Returns 0 when the stop is on the wrong side of the entry.
func (s Strike) RewardRiskRatio() float64 {
	reward := math.Abs(s.TargetPrice - s.EntryPrice)
	risk := s.EntryPrice - s.StopLoss
	if !s.IsLong() {
		risk = s.StopLoss - s.EntryPrice
	}
	if risk <= 0 {
		return 0
	}
	return reward / risk
}

// Validate checks that the strike is well-formed before it enters the pipeline
func (s Strike) Validate() error {
	if strings.TrimSpace(s.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if s.Type != "" && !IsValidStrikeType(string(s.Type)) {
		return fmt.Errorf("unknown strike type %q", s.Type)
	}
	if !positive(s.EntryPrice) || !positive(s.TargetPrice) || !positive(s.StopLoss) {
		return fmt.Errorf("entry/target/stop prices must be > 0 (entry=%v target=%v stop=%v)",
			s.EntryPrice, s.TargetPrice, s.StopLoss)
	}
	if !positive(s.PositionSize) {
		return fmt.Errorf("position size must be > 0, got %v", s.PositionSize)
	}
	if math.IsNaN(s.Confidence) || s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence must be in [0,1], got %v", s.Confidence)
	}
	if math.IsNaN(s.ExpectedReturn) || math.IsInf(s.ExpectedReturn, 0) {
		return fmt.Errorf("expected return must be finite")
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
