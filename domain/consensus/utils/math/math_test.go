package math

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/kaspanet/btcconsensus/domain/consensus/ruleerrors"
	"pgregory.net/rapid"
)

// TestBigToCompact ensures BigToCompact converts big integers to the expected
// compact representation.
func TestBigToCompact(t *testing.T) {
	tests := []struct {
		in  string
		out uint32
	}{
		{"0", 0},
		{"-1", 25231360},
		{"9223372036854775807", 142606335},
		{"922337203685477580712312312123487", 237861256},
		{"26959535291011309493156476344723991336010898738574164086137773096960", 0x1d00ffff},
	}

	for x, test := range tests {
		n := new(big.Int)
		n.SetString(test.in, 10)
		r := BigToCompact(n)
		if r != test.out {
			t.Fatalf("TestBigToCompact test #%d failed: got %d want %d\n",
				x, r, test.out)
		}
	}
}

// TestCompactToBig ensures CompactToBig converts numbers using the compact
// representation to the expected big integers.
func TestCompactToBig(t *testing.T) {
	tests := []struct {
		in  uint32
		out string
	}{
		{0, "0"},
		{10000000, "0"},
		{math.MaxUint32, "-6311914495863998658485429352026283268468573753812676234178171506285465200675957" +
			"87397376951158770808349115367298981082112562162319027637583517246275967980671962038665775867893645140" +
			"22856089959012026469381002722748489975264028415685723882208353467651862351803217528553851158828320170" +
			"89832330727351553686808317476632783024236208492771822246700842318520468733521003756809213629548010354" +
			"33865968377930773213939300289069292503211567790599147939718451689002543278625341832829837474611074167" +
			"86700705915281593002614032021233542099318559748885883681365573294332856023451874423425211080847063825" +
			"199113186681992371681311588352",
		},
		{142606335, "9223370937343148032"},
		{25231360, "-1"},
		{237861256, "922337129789886856855791696084992"},
		{0x1d00ffff, "26959535291011309493156476344723991336010898738574164086137773096960"},
	}

	for i, test := range tests {
		n := CompactToBig(test.in)
		if n.String() != test.out {
			t.Fatalf("TestCompactToBig test #%d failed: got %s want %s",
				i, n, test.out)
		}
	}
}

func TestCompactToBigStrict(t *testing.T) {
	tests := []struct {
		name        string
		in          uint32
		expectedErr error
	}{
		{"main network limit", 0x1d00ffff, nil},
		{"regression test limit", 0x207fffff, nil},
		{"zero", 0, nil},
		{"sign bit with zero mantissa", 0x01800000, nil},
		{"negative", 0x01810000, ruleerrors.ErrNegativeTarget},
		{"negative large", 0x04923456, ruleerrors.ErrNegativeTarget},
		{"largest exponent for a one-byte mantissa", 0x220000ff, nil},
		{"exponent overflow", 0x23000001, ruleerrors.ErrTargetOverflow},
		{"two-byte mantissa overflow", 0x22000100, ruleerrors.ErrTargetOverflow},
		{"three-byte mantissa overflow", 0x21010000, ruleerrors.ErrTargetOverflow},
		{"max uint32", math.MaxUint32, ruleerrors.ErrNegativeTarget},
	}

	for _, test := range tests {
		n, err := CompactToBigStrict(test.in)
		if test.expectedErr == nil {
			if err != nil {
				t.Fatalf("TestCompactToBigStrict (%s): unexpected error: %v", test.name, err)
			}
			if n.Cmp(CompactToBig(test.in)) != 0 {
				t.Fatalf("TestCompactToBigStrict (%s): got %s want %s", test.name, n, CompactToBig(test.in))
			}
			continue
		}
		if !errors.Is(err, test.expectedErr) {
			t.Fatalf("TestCompactToBigStrict (%s): expected %v, got: %v", test.name, test.expectedErr, err)
		}
		if kind, _ := ruleerrors.KindOf(err); kind != ruleerrors.StructuralError {
			t.Fatalf("TestCompactToBigStrict (%s): expected a StructuralError, got: %s", test.name, kind)
		}
	}
}

func TestCalcWork(t *testing.T) {
	tests := []struct {
		bits uint32
		work string
	}{
		// The genesis block difficulty does 2^32 hashes (plus change)
		{0x1d00ffff, "4295032833"},
		{0x207fffff, "2"},
		{0, "0"},
		{0x01810000, "0"},
	}

	for _, test := range tests {
		work := CalcWork(test.bits)
		if work.String() != test.work {
			t.Fatalf("TestCalcWork: bits %08x: got %s want %s", test.bits, work, test.work)
		}
	}

	if CalcWork(0x1c00ffff).Cmp(CalcWork(0x1d00ffff)) <= 0 {
		t.Fatalf("TestCalcWork: a lower target must carry more work")
	}
}

// TestCompactRoundTrip checks that compressing an expanded target keeps its
// most significant bits and never raises it.
func TestCompactRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		exponent := rapid.Uint32Range(3, 32).Draw(t, "exponent")
		mantissa := rapid.Uint32Range(1, 0x7fffff).Draw(t, "mantissa")
		bits := exponent<<24 | mantissa
		target, err := CompactToBigStrict(bits)
		if err != nil {
			t.Fatalf("CompactToBigStrict(%08x): %v", bits, err)
		}

		roundTripped := CompactToBig(BigToCompact(target))
		if roundTripped.Cmp(target) > 0 {
			t.Fatalf("round trip of %08x raised the target from %s to %s", bits, target, roundTripped)
		}
		if roundTripped.Cmp(target) != 0 {
			t.Fatalf("round trip of %08x changed the target from %s to %s", bits, target, roundTripped)
		}

		// Compressing an arbitrary value only truncates it
		value := new(big.Int).Add(target, big.NewInt(int64(rapid.Uint32().Draw(t, "delta"))))
		compressed := CompactToBig(BigToCompact(value))
		if compressed.Cmp(value) > 0 {
			t.Fatalf("compressing %s raised it to %s", value, compressed)
		}
		if compressed.BitLen() != value.BitLen() && compressed.BitLen() != 0 {
			t.Fatalf("compressing %s lost its magnitude: %s", value, compressed)
		}
	})
}

func FuzzCompactToBig(f *testing.F) {
	f.Add(uint32(0x1d00ffff))
	f.Add(uint32(0x207fffff))
	f.Add(uint32(math.MaxUint32))
	f.Add(uint32(0))

	f.Fuzz(func(t *testing.T, bits uint32) {
		target, err := CompactToBigStrict(bits)
		if err != nil {
			return
		}
		if target.Sign() < 0 {
			t.Fatalf("strict conversion of %08x returned a negative target", bits)
		}
		if target.BitLen() > 256 {
			t.Fatalf("strict conversion of %08x returned a %d bit target", bits, target.BitLen())
		}
		if CompactToBig(BigToCompact(target)).Cmp(target) > 0 {
			t.Fatalf("round trip of %08x raised the target", bits)
		}
		CalcWork(bits)
	})
}
