package id

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/ssandoval/treasury-cli/internal/errors"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// DecimalToBaseUnits converts a decimal amount string into integer base units.
// All monetary arithmetic in this codebase happens on base units; decimal
// strings exist only at input/output boundaries.
func DecimalToBaseUnits(decimal string, decimals int) (*big.Int, error) {
	clean := strings.TrimSpace(decimal)
	if clean == "" {
		return nil, clierr.New(clierr.CodeUsage, "amount is required")
	}
	if decimals < 0 {
		return nil, clierr.New(clierr.CodeUsage, "decimals must be >= 0")
	}
	if !decimalPattern.MatchString(clean) {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("amount must be in decimal form like 1.23, got %q", decimal))
	}

	parts := strings.SplitN(clean, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > decimals {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("decimal precision exceeds asset decimals (%d)", decimals))
	}

	fracPart = fracPart + strings.Repeat("0", decimals-len(fracPart))
	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		return big.NewInt(0), nil
	}
	out, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, clierr.New(clierr.CodeUsage, "invalid decimal amount")
	}
	return out, nil
}

// ParseBaseUnits parses a non-negative base-unit integer string.
func ParseBaseUnits(v string) (*big.Int, error) {
	clean := strings.TrimSpace(v)
	out, ok := new(big.Int).SetString(clean, 10)
	if !ok || out.Sign() < 0 {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("amount must be a non-negative integer string, got %q", v))
	}
	return out, nil
}

// FormatBaseUnits renders base units as a trimmed decimal string.
func FormatBaseUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	s := v.String()
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if decimals > 0 {
		if len(s) <= decimals {
			s = strings.Repeat("0", decimals-len(s)+1) + s
		}
		intPart := s[:len(s)-decimals]
		fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
		if fracPart == "" {
			s = intPart
		} else {
			s = intPart + "." + fracPart
		}
	}
	if neg {
		return "-" + s
	}
	return s
}

// ApplySlippage widens a required input amount by slippageBps, rounding up.
func ApplySlippage(requiredInput *big.Int, slippageBps int64) *big.Int {
	if requiredInput == nil {
		return big.NewInt(0)
	}
	if slippageBps <= 0 {
		return new(big.Int).Set(requiredInput)
	}
	num := new(big.Int).Mul(requiredInput, big.NewInt(10000+slippageBps))
	quo, rem := new(big.Int).QuoRem(num, big.NewInt(10000), new(big.Int))
	if rem.Sign() > 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}
