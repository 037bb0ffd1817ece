package models

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TokenDecimals is the fixed-point scale of the token and of native fees.
const TokenDecimals = 18

var weiPerToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)

func GenerateActionID() string {
	return fmt.Sprintf("act_%s_%s",
		time.Now().Format("20060102"),
		uuid.NewString())
}

// WeiToTokens converts an 18-decimal fixed-point string to token units.
// Empty input is zero.
func WeiToTokens(wei string) (float64, error) {
	wei = strings.TrimSpace(wei)
	if wei == "" {
		return 0, nil
	}

	r, ok := new(big.Rat).SetString(wei)
	if !ok {
		return 0, fmt.Errorf("invalid wei amount: %q", wei)
	}
	r.Quo(r, new(big.Rat).SetInt(weiPerToken))

	f, _ := r.Float64()
	return f, nil
}

// BigWeiToTokens is WeiToTokens for an on-chain integer.
func BigWeiToTokens(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Rat).SetFrac(wei, weiPerToken).Float64()
	return f
}

// ParseTokenAmount converts a decimal token amount ("0.015") to wei.
func ParseTokenAmount(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	r, ok := new(big.Rat).SetString(amount)
	if !ok {
		return nil, fmt.Errorf("invalid token amount: %q", amount)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("token amount must not be negative: %q", amount)
	}

	r.Mul(r, new(big.Rat).SetInt(weiPerToken))
	if !r.IsInt() {
		return nil, fmt.Errorf("token amount has more than %d decimals: %q", TokenDecimals, amount)
	}
	return new(big.Int).Set(r.Num()), nil
}

// ParseWei parses a base-10 wei string.
func ParseWei(wei string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(wei), 10)
	if !ok {
		return nil, fmt.Errorf("invalid wei amount: %q", wei)
	}
	return n, nil
}

// FormatTokenCount shortens a token amount with k/m/b suffixes and two
// decimals: 1200 -> "1.20k", 1500000 -> "1.50m".
func FormatTokenCount(n float64) string {
	suffixes := []struct {
		value  float64
		symbol string
	}{
		{1e9, "b"},
		{1e6, "m"},
		{1e3, "k"},
	}

	for _, s := range suffixes {
		if n >= s.value {
			return fmt.Sprintf("%.2f%s", n/s.value, s.symbol)
		}
	}
	return fmt.Sprintf("%.2f", n)
}
