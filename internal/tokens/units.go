package tokens

import (
	"math"
	"math/big"
)

// ToFloat converts a base-unit amount to a human-readable float.
func ToFloat(amount *big.Int, decimals int) float64 {
	if amount == nil {
		return 0
	}
	f := new(big.Float).SetInt(amount)
	f.Quo(f, big.NewFloat(math.Pow10(decimals)))
	val, _ := f.Float64()
	return val
}

// FromFloat converts a human-readable amount to base units, truncating
// sub-unit dust.
func FromFloat(amount float64, decimals int) *big.Int {
	if amount <= 0 {
		return new(big.Int)
	}
	f := new(big.Float).SetFloat64(amount)
	f.Mul(f, big.NewFloat(math.Pow10(decimals)))
	out, _ := f.Int(nil)
	return out
}
