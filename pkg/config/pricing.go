package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelPricing はモデルごとの価格情報
type ModelPricing struct {
	InputPricePer1kTokens  float64 `yaml:"input_price_per_1k_tokens"`
	OutputPricePer1kTokens float64 `yaml:"output_price_per_1k_tokens"`
	Provider               string  `yaml:"provider"`
	Description            string  `yaml:"description"`
}

// PricingConfig は価格設定ファイルの構造
type PricingConfig struct {
	Models       map[string]ModelPricing `yaml:"models"`
	DefaultModel string                  `yaml:"default_model"`
}

// gpt-4o-mini 相当の単価（1000トークンあたり）
const (
	defaultInputPricePer1k  = 0.0015
	defaultOutputPricePer1k = 0.0020
)

// LoadPricing は価格設定ファイルを読み込む
// パスが空の場合はデフォルト単価のみの設定を返す
func LoadPricing(path string) (*PricingConfig, error) {
	if path == "" {
		return &PricingConfig{Models: map[string]ModelPricing{}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pricing config: %w", err)
	}

	var cfg PricingConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse pricing config: %w", err)
	}
	if cfg.Models == nil {
		cfg.Models = map[string]ModelPricing{}
	}

	return &cfg, nil
}

// RatesFor はモデルの入出力単価を返す
// 未登録のモデルにはデフォルト単価を適用する
func (c *PricingConfig) RatesFor(model string) (inputPer1k, outputPer1k float64) {
	if pricing, ok := c.Models[model]; ok {
		return pricing.InputPricePer1kTokens, pricing.OutputPricePer1kTokens
	}
	return defaultInputPricePer1k, defaultOutputPricePer1k
}
