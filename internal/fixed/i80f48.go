// Package fixed implements the I80F48 fixed-point number used by the
// marginfi program for weights, rates and share values.
package fixed

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
)

// FracBits is the number of fractional bits of an I80F48.
const FracBits = 48

// Size is the on-chain width of an I80F48 in bytes.
const Size = 16

var (
	modulus = new(big.Int).Lsh(big.NewInt(1), 128)
	maxBits = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minBits = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	halfULP = big.NewFloat(0.5)
)

// I80F48 is a signed 128-bit two's complement fixed-point number with 80
// integer and 48 fractional bits. The zero value is 0.
type I80F48 struct {
	hi int64
	lo uint64
}

// FromInt returns n as an I80F48. Every int64 is representable.
func FromInt(n int64) I80F48 {
	v, _ := FromBits(new(big.Int).Lsh(big.NewInt(n), FracBits))
	return v
}

// FromBits builds a value from its raw scaled integer (value * 2^48).
func FromBits(bits *big.Int) (I80F48, error) {
	if bits.Cmp(maxBits) > 0 || bits.Cmp(minBits) < 0 {
		return I80F48{}, fmt.Errorf("value %s overflows I80F48", bits.String())
	}
	u := new(big.Int).Set(bits)
	if u.Sign() < 0 {
		u.Add(u, modulus)
	}
	lo := new(big.Int).And(u, new(big.Int).SetUint64(math.MaxUint64)).Uint64()
	hi := new(big.Int).Rsh(u, 64).Uint64()
	return I80F48{hi: int64(hi), lo: lo}, nil
}

// FromFloat64 converts the exact binary value of f, rounding bits below
// 2^-48 to nearest with ties to even.
func FromFloat64(f float64) (I80F48, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return I80F48{}, fmt.Errorf("cannot convert %v to I80F48", f)
	}
	scaled := new(big.Float).SetFloat64(f)
	scaled.SetMantExp(scaled, FracBits)

	bits, _ := scaled.Int(nil)
	if !scaled.IsInt() {
		rem := new(big.Float).SetPrec(256).Sub(scaled, new(big.Float).SetInt(bits))
		switch rem.Abs(rem).Cmp(halfULP) {
		case 1:
			bits.Add(bits, big.NewInt(int64(scaled.Sign())))
		case 0:
			if bits.Bit(0) == 1 {
				bits.Add(bits, big.NewInt(int64(scaled.Sign())))
			}
		}
	}
	v, err := FromBits(bits)
	if err != nil {
		return I80F48{}, fmt.Errorf("cannot convert %v to I80F48: out of range", f)
	}
	return v, nil
}

// FromFloat32 widens f to float64, which is exact, and converts it.
func FromFloat32(f float32) (I80F48, error) {
	return FromFloat64(float64(f))
}

// FromBytes decodes the little-endian on-chain representation.
func FromBytes(b [Size]byte) I80F48 {
	return I80F48{
		lo: binary.LittleEndian.Uint64(b[:8]),
		hi: int64(binary.LittleEndian.Uint64(b[8:])),
	}
}

// Bits returns the raw scaled integer (value * 2^48).
func (v I80F48) Bits() *big.Int {
	out := new(big.Int).Lsh(big.NewInt(v.hi), 64)
	return out.Add(out, new(big.Int).SetUint64(v.lo))
}

// Bytes returns the little-endian two's complement on-chain encoding.
func (v I80F48) Bytes() [Size]byte {
	var b [Size]byte
	binary.LittleEndian.PutUint64(b[:8], v.lo)
	binary.LittleEndian.PutUint64(b[8:], uint64(v.hi))
	return b
}

func (v I80F48) IsZero() bool {
	return v.hi == 0 && v.lo == 0
}

// String renders the exact decimal value.
func (v I80F48) String() string {
	f := new(big.Float).SetPrec(160).SetInt(v.Bits())
	f.SetMantExp(f, -FracBits)
	return f.Text('f', -1)
}

func (v I80F48) MarshalJSON() ([]byte, error) {
	return []byte(`"` + v.String() + `"`), nil
}
