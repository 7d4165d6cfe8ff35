package common

import (
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrDivisionByZero = NewError(KindDivisionByZero, "math: division by zero")
	ErrMathOverflow   = NewError(KindMathOverflow, "math: value exceeds 256 bits")
	ErrMathUnderflow  = NewError(KindMathOverflow, "math: subtraction underflow")
)

// WAD is the 1e18 unit used for energy and reserve amounts.
var WAD = Pow10(18)

// Pow10 returns 10^n.
func Pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Clone returns a copy of v, treating nil as zero.
func Clone(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// IsPositive reports whether v is non-nil and strictly positive.
func IsPositive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

// Min returns a copy of the smaller value.
func Min(a, b *big.Int) *big.Int {
	a, b = Clone(a), Clone(b)
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// Max returns a copy of the larger value.
func Max(a, b *big.Int) *big.Int {
	a, b = Clone(a), Clone(b)
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, ErrMathUnderflow
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrMathOverflow
	}
	return out, nil
}

// CheckRange ensures v is a non-negative value representable in 256 bits.
func CheckRange(v *big.Int) error {
	_, err := toUint256(v)
	return err
}

// MulDiv returns floor(a*b/d) with a full-width intermediate product. All
// operands and the result must fit in 256 bits.
func MulDiv(a, b, d *big.Int) (*big.Int, error) {
	x, err := toUint256(a)
	if err != nil {
		return nil, err
	}
	y, err := toUint256(b)
	if err != nil {
		return nil, err
	}
	z, err := toUint256(d)
	if err != nil {
		return nil, err
	}
	if z.IsZero() {
		return nil, ErrDivisionByZero
	}
	out, overflow := new(uint256.Int).MulDivOverflow(x, y, z)
	if overflow {
		return nil, ErrMathOverflow
	}
	return out.ToBig(), nil
}

// MulDivUp is MulDiv rounded towards positive infinity.
func MulDivUp(a, b, d *big.Int) (*big.Int, error) {
	floor, err := MulDiv(a, b, d)
	if err != nil {
		return nil, err
	}
	rem := new(big.Int).Mul(Clone(a), Clone(b))
	rem.Mod(rem, d)
	if rem.Sign() != 0 {
		floor.Add(floor, big.NewInt(1))
		if err := CheckRange(floor); err != nil {
			return nil, err
		}
	}
	return floor, nil
}

// Div returns floor(a/b).
func Div(a, b *big.Int) (*big.Int, error) {
	if b == nil || b.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	if err := CheckRange(a); err != nil {
		return nil, err
	}
	return new(big.Int).Quo(Clone(a), b), nil
}

// Add returns a+b, failing when the sum leaves the 256-bit range.
func Add(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(Clone(a), Clone(b))
	if err := CheckRange(sum); err != nil {
		return nil, err
	}
	return sum, nil
}

// Sub returns a-b, failing with ErrMathUnderflow when b > a.
func Sub(a, b *big.Int) (*big.Int, error) {
	diff := new(big.Int).Sub(Clone(a), Clone(b))
	if diff.Sign() < 0 {
		return nil, ErrMathUnderflow
	}
	return diff, nil
}

// SubFloor returns max(a-b, 0).
func SubFloor(a, b *big.Int) *big.Int {
	diff := new(big.Int).Sub(Clone(a), Clone(b))
	if diff.Sign() < 0 {
		return big.NewInt(0)
	}
	return diff
}

// Percent returns floor(v*pct/100).
func Percent(v *big.Int, pct uint64) (*big.Int, error) {
	return MulDiv(v, new(big.Int).SetUint64(pct), big.NewInt(100))
}

// Bps returns floor(v*bps/10_000).
func Bps(v *big.Int, bps uint64) (*big.Int, error) {
	return MulDiv(v, new(big.Int).SetUint64(bps), big.NewInt(10_000))
}
