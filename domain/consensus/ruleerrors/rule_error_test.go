package ruleerrors

import (
	"errors"
	"testing"

	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	pkgerrors "github.com/pkg/errors"
)

func TestNewErrMissingTxOut(t *testing.T) {
	outer := NewErrMissingTxOut(
		[]*externalapi.DomainOutpoint{
			{
				TransactionID: externalapi.DomainTransactionID(*externalapi.NewDomainHashFromByteArray(&[externalapi.DomainHashSize]byte{255, 255, 255})),
				Index:         5,
			},
		})
	expectedOuterErr := "ErrMissingTxOut: missing the following outpoint: " +
		"[(0000000000000000000000000000000000000000000000000000000000ffffff: 5)]"
	inner := &ErrMissingTxOut{}
	if !errors.As(outer, inner) {
		t.Fatal("TestNewErrMissingTxOut: Outer should contain ErrMissingTxOut in it")
	}

	if len(inner.MissingOutpoints) != 1 {
		t.Fatalf("TestNewErrMissingTxOut: Expected len(inner.MissingOutpoints) 1, found: %d", len(inner.MissingOutpoints))
	}
	if inner.MissingOutpoints[0].Index != 5 {
		t.Fatalf("TestNewErrMissingTxOut: Expected 5. found: %d", inner.MissingOutpoints[0].Index)
	}

	rule := &RuleError{}
	if !errors.As(outer, rule) {
		t.Fatal("TestNewErrMissingTxOut: Outer should contain RuleError in it")
	}
	if rule.message != "ErrMissingTxOut" {
		t.Fatalf("TestNewErrMissingTxOut: Expected message = 'ErrMissingTxOut', found: '%s'", rule.message)
	}
	if rule.kind != UtxoResolutionError {
		t.Fatalf("TestNewErrMissingTxOut: Expected kind UtxoResolutionError, found: %s", rule.kind)
	}

	if outer.Error() != expectedOuterErr {
		t.Fatalf("TestNewErrMissingTxOut: Expected %s. found: %s", expectedOuterErr, outer.Error())
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedKind Kind
		expectedOK   bool
	}{
		{
			name:         "bare sentinel",
			err:          ErrBadMerkleRoot,
			expectedKind: ConsensusRuleViolation,
			expectedOK:   true,
		},
		{
			name:         "wrapped sentinel",
			err:          pkgerrors.Wrapf(ErrTxTooBig, "transaction %d", 3),
			expectedKind: ResourceLimitExceeded,
			expectedOK:   true,
		},
		{
			name:         "doubly wrapped sentinel",
			err:          pkgerrors.Wrap(pkgerrors.Wrapf(ErrFeesOverflow, "block"), "height 7"),
			expectedKind: ArithmeticOverflow,
			expectedOK:   true,
		},
		{
			name:         "rule error wrapping another rule error",
			err:          Wrap(ErrReorganizationFailure, pkgerrors.WithStack(ErrBadCoinbaseValue), "block 2"),
			expectedKind: ReorganizationFailure,
			expectedOK:   true,
		},
		{
			name:       "not a rule error",
			err:        pkgerrors.New("some error"),
			expectedOK: false,
		},
		{
			name:       "nil",
			err:        nil,
			expectedOK: false,
		},
	}

	for _, test := range tests {
		kind, ok := KindOf(test.err)
		if ok != test.expectedOK {
			t.Fatalf("TestKindOf: %s: Expected ok %t, found: %t", test.name, test.expectedOK, ok)
		}
		if ok && kind != test.expectedKind {
			t.Fatalf("TestKindOf: %s: Expected kind %s, found: %s", test.name, test.expectedKind, kind)
		}
	}
}

func TestWrap(t *testing.T) {
	inner := pkgerrors.Wrapf(ErrBadCoinbaseValue, "coinbase pays too much")
	outer := Wrap(ErrReorganizationFailure, inner, "failed connecting block %d", 4)

	if !errors.Is(outer, ErrReorganizationFailure) {
		t.Fatalf("TestWrap: Expected outer to match ErrReorganizationFailure")
	}
	if !errors.Is(outer, ErrBadCoinbaseValue) {
		t.Fatalf("TestWrap: Expected outer to match the wrapped ErrBadCoinbaseValue")
	}
	if errors.Is(outer, ErrBadMerkleRoot) {
		t.Fatalf("TestWrap: Didn't expect outer to match ErrBadMerkleRoot")
	}
	if !Is(outer, ReorganizationFailure) {
		t.Fatalf("TestWrap: Expected outer to be of kind ReorganizationFailure")
	}

	expectedErr := "failed connecting block 4: ErrReorganizationFailure: coinbase pays too much: ErrBadCoinbaseValue"
	if outer.Error() != expectedErr {
		t.Fatalf("TestWrap: Expected %s. found: %s", expectedErr, outer.Error())
	}
}
