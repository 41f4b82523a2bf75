package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSettings is returned when an asset's threshold record is
// incomplete or holds a non-finite value.
var ErrInvalidSettings = errors.New("invalid asset settings")

// AssetSettings holds the thresholds (in percent) and buy sizes (in USD) that
// drive the decisions for one asset. It is loaded once and never mutated.
type AssetSettings struct {
	ID string `yaml:"id" json:"id"`

	LowPercentageThreshold  float64 `yaml:"LowPercentageThreshold" json:"LowPercentageThreshold"`
	HighPercentageThreshold float64 `yaml:"HighPercentageThreshold" json:"HighPercentageThreshold"`

	LowToUpBuyInPercentageThreshold      float64 `yaml:"LowToUpBuyInPercentageThreshold" json:"LowToUpBuyInPercentageThreshold"`
	MaxPercentageDown                    float64 `yaml:"MaxPercentageDown" json:"MaxPercentageDown"`
	HighToDownSellOutPercentageThreshold float64 `yaml:"HighToDownSellOutPercentageThreshold" json:"HighToDownSellOutPercentageThreshold"`

	AdjustReferencePriceDownThreshold float64 `yaml:"AdjustReferencePriceDownThreshold" json:"AdjustReferencePriceDownThreshold"`
	AdjustReferencePriceUpThreshold   float64 `yaml:"AdjustReferencePriceUpThreshold" json:"AdjustReferencePriceUpThreshold"`

	SmallestAmountToBuyInUSD float64 `yaml:"SmallestAmountToBuyInUSD" json:"SmallestAmountToBuyInUSD"`
	LargestAmountToBuyInUSD  float64 `yaml:"LargestAmountToBuyInUSD" json:"LargestAmountToBuyInUSD"`

	MaxPortfolioPercentage float64 `yaml:"MaxPortfolioPercentage" json:"MaxPortfolioPercentage"`
}

// Check verifies that every threshold is a finite number. Threshold ordering
// is the operator's responsibility and is not checked.
func (s *AssetSettings) Check() error {
	if s.ID == "" {
		return fmt.Errorf("%w: empty asset id", ErrInvalidSettings)
	}
	fields := []struct {
		name  string
		value float64
	}{
		{"LowPercentageThreshold", s.LowPercentageThreshold},
		{"HighPercentageThreshold", s.HighPercentageThreshold},
		{"LowToUpBuyInPercentageThreshold", s.LowToUpBuyInPercentageThreshold},
		{"MaxPercentageDown", s.MaxPercentageDown},
		{"HighToDownSellOutPercentageThreshold", s.HighToDownSellOutPercentageThreshold},
		{"AdjustReferencePriceDownThreshold", s.AdjustReferencePriceDownThreshold},
		{"AdjustReferencePriceUpThreshold", s.AdjustReferencePriceUpThreshold},
		{"SmallestAmountToBuyInUSD", s.SmallestAmountToBuyInUSD},
		{"LargestAmountToBuyInUSD", s.LargestAmountToBuyInUSD},
		{"MaxPortfolioPercentage", s.MaxPortfolioPercentage},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s of %s is not a finite number", ErrInvalidSettings, f.name, s.ID)
		}
	}
	return nil
}

// SettingsFields lists the keys every settings record must carry.
var SettingsFields = []string{
	"LowPercentageThreshold",
	"HighPercentageThreshold",
	"LowToUpBuyInPercentageThreshold",
	"MaxPercentageDown",
	"HighToDownSellOutPercentageThreshold",
	"AdjustReferencePriceDownThreshold",
	"AdjustReferencePriceUpThreshold",
	"SmallestAmountToBuyInUSD",
	"LargestAmountToBuyInUSD",
	"MaxPortfolioPercentage",
}
