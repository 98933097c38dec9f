package util

// AlignUp rounds lba up to the next multiple of grain. A grain of 0 or 1 returns lba.
// Returns lba unchanged if rounding up would overflow.
func AlignUp(lba, grain uint64) uint64 {
	if grain <= 1 {
		return lba
	}
	rem := lba % grain
	if rem == 0 {
		return lba
	}
	aligned := lba + grain - rem
	if aligned < lba {
		return lba
	}
	return aligned
}

// AlignDown rounds lba down to a multiple of grain.
func AlignDown(lba, grain uint64) uint64 {
	if grain <= 1 {
		return lba
	}
	return lba - lba%grain
}
