package chain

import "github.com/holiman/uint256"

// Basis is the denominator for all percentage shares: 1 bps = 0.01%.
const Basis = 10_000

// BpsShare returns amount * bps / 10000, rounding down. The caller that
// assembles a full split must assign the remainder explicitly; shares
// computed here never sum above the input.
func BpsShare(amount *uint256.Int, bps uint16) *uint256.Int {
	out := new(uint256.Int).Mul(amount, uint256.NewInt(uint64(bps)))
	return out.Div(out, uint256.NewInt(Basis))
}

// ApplyRatioBps returns amount * ratioBps / 10000, rounding down.
// Identical math to BpsShare; named separately because the mint ladder
// ratio is a conversion factor, not a carve-out.
func ApplyRatioBps(amount *uint256.Int, ratioBps uint16) *uint256.Int {
	return BpsShare(amount, ratioBps)
}

// Min returns the smaller of a and b as a fresh value.
func Min(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a.Clone()
	}
	return b.Clone()
}
