package phi

// pow2Mod9 is 2^t mod 9 for t mod 6. 2 has multiplicative order 6 modulo 9.
var pow2Mod9 = [6]uint64{1, 2, 4, 8, 7, 5}

// DigitalRoot returns the base-10 digital root of n: 0 for 0, 9 for positive
// multiples of 9 and n mod 9 otherwise.
func DigitalRoot(n uint64) int {
	if n == 0 {
		return 0
	}
	return rootOfResidue(n % 9)
}

// rootOfResidue maps the mod-9 residue of a positive integer to its digital root.
func rootOfResidue(r uint64) int {
	if r == 0 {
		return 9
	}
	return int(r)
}

// residue returns (multiplier · 2^t) mod 9.
func residue(multiplier, t int) uint64 {
	return (uint64(multiplier) % 9) * pow2Mod9[t%6] % 9
}

// RootAt returns the digital root of multiplier · 2^t for multiplier >= 1, t >= 0.
func RootAt(multiplier, t int) int {
	return rootOfResidue(residue(multiplier, t))
}

// IsVibrating reports whether a digital root belongs to the vibrating set {3, 6}.
func IsVibrating(root int) bool {
	return root == 3 || root == 6
}

// Period returns the smallest p such that RootAt(multiplier, t+p) equals
// RootAt(multiplier, t) for every t. It always divides 6.
func Period(multiplier int) int {
	for _, p := range []int{1, 2, 3} {
		periodic := true
		for t := 0; t < 6; t++ {
			if RootAt(multiplier, t) != RootAt(multiplier, t+p) {
				periodic = false
				break
			}
		}
		if periodic {
			return p
		}
	}
	return 6
}
