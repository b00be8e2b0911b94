package runtime

import (
	"golang.org/x/xerrors"

	"asyncmpc/field"
	"asyncmpc/prss"
)

// Config carries the public parameters of one computation. All players must
// run with identical N, T, Field, BitField, BitLength and SecParam, or their
// protocol transcripts diverge.
type Config struct {
	// N is the number of players, T the threshold. Secrets stay hidden from
	// any T colluding players; the protocols need N >= 2T+1.
	N int
	T int

	// Field is the prime field all arithmetic happens in.
	Field *field.Zp

	// BitField is the field bit shares live in, either Field itself or
	// GF(2^8) when comparisons should run on cheap byte arithmetic. Nil
	// defaults to Field.
	BitField field.Field

	// PRSS is this player's view of the pseudo-random secret sharing keys.
	// Optional; required by the actively secure multiplication and by the
	// random bit protocols.
	PRSS *prss.Keys

	// BitLength is the bit width of values going through bit sharing and
	// comparison. Zero defaults to 32.
	BitLength int

	// SecParam is the statistical masking parameter of the bit
	// decomposition. Zero defaults to 30.
	SecParam int
}

func (c *Config) withDefaults() {
	if c.BitField == nil {
		c.BitField = c.Field
	}
	if c.BitLength == 0 {
		c.BitLength = 32
	}
	if c.SecParam == 0 {
		c.SecParam = 30
	}
}

func (c *Config) validate() error {
	if c.Field == nil {
		return xerrors.New("config needs a field")
	}
	if c.T < 0 {
		return xerrors.Errorf("negative threshold %d", c.T)
	}
	if c.N < 2*c.T+1 {
		return xerrors.Errorf("n=%d t=%d: %w", c.N, c.T, ErrGroupTooSmall)
	}
	if c.BitLength < 1 {
		return xerrors.Errorf("bit length %d", c.BitLength)
	}
	return nil
}
