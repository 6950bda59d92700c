package consensus

import (
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/kaspanet/btcconsensus/domain/chaincfg"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/processes/coinbasemanager"
	"github.com/kaspanet/btcconsensus/domain/consensus/ruleerrors"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/testutils"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/transactionhelper"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/txscript"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/utxo"
	"github.com/pkg/errors"
)

func newTestConsensus(params *chaincfg.Params) Consensus {
	return NewFactory().NewConsensus(&Config{Params: *params, VerifyInvariants: true})
}

// recordedOutput returns an outpoint holding an OP_TRUE output worth value
// in a fresh set. The entry is recorded at height 0, below any block.
func recordedOutput(t *testing.T, value externalapi.Amount) (*utxo.InMemoryUTXOSet, *externalapi.DomainOutpoint) {
	var id [externalapi.DomainHashSize]byte
	id[0] = 0xaa
	outpoint := externalapi.NewDomainOutpoint(externalapi.NewDomainTransactionIDFromByteArray(&id), 0)
	set := utxo.NewInMemoryUTXOSet()
	err := set.Insert(outpoint, utxo.NewUTXOEntry(value, []byte{txscript.OpTrue}, false, 0))
	if err != nil {
		t.Fatalf("Insert: %+v", err)
	}
	return set, outpoint
}

func setValue(t *testing.T, set externalapi.UTXOSetIterator) externalapi.Amount {
	total := externalapi.Amount(0)
	err := set.ForEach(func(_ *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
		total += entry.Amount()
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %+v", err)
	}
	return total
}

// snapshot returns the serialized entries of set by outpoint
func snapshot(t *testing.T, set externalapi.UTXOSetIterator) map[externalapi.DomainOutpoint]string {
	entries := make(map[externalapi.DomainOutpoint]string)
	err := set.ForEach(func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
		serialized, err := utxo.SerializeUTXO(entry, outpoint)
		if err != nil {
			return err
		}
		entries[*outpoint] = string(serialized)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %+v", err)
	}
	return entries
}

func TestSpendRecordedOutput(t *testing.T) {
	params := &chaincfg.RegressionNetParams
	consensus := newTestConsensus(params)
	set, outpoint := recordedOutput(t, 100)
	chain := consensus.NewActiveChain(set)
	builder := testutils.NewChainBuilder(params)

	tx := testutils.SpendOutput(outpoint, 100, 10)
	fee, err := consensus.ValidateTransaction(tx, set, builder.NextHeight())
	if err != nil {
		t.Fatalf("TestSpendRecordedOutput: ValidateTransaction: %+v", err)
	}
	if fee != 10 {
		t.Fatalf("TestSpendRecordedOutput: Expected fee 10, found: %d", fee)
	}

	height := builder.NextHeight()
	block, err := builder.NextBlock(fee, tx)
	if err != nil {
		t.Fatalf("NextBlock: %+v", err)
	}
	supplyBefore := chain.Supply
	valueBefore := setValue(t, set)

	result, err := consensus.ConnectBlock(chain, block, externalapi.BFNone)
	if err != nil {
		t.Fatalf("TestSpendRecordedOutput: ConnectBlock: %+v", err)
	}
	if result.State != externalapi.StateConnected {
		t.Fatalf("TestSpendRecordedOutput: Expected state %s, found: %s", externalapi.StateConnected, result.State)
	}
	if result.Fees != 10 {
		t.Fatalf("TestSpendRecordedOutput: Expected fees 10, found: %d", result.Fees)
	}

	subsidy := coinbasemanager.CalcBlockSubsidy(height, params)
	if chain.Supply-supplyBefore != subsidy {
		t.Fatalf("TestSpendRecordedOutput: Expected supply to grow by %d, found: %d",
			subsidy, chain.Supply-supplyBefore)
	}
	if setValue(t, set)-valueBefore != subsidy {
		t.Fatalf("TestSpendRecordedOutput: Expected set value to grow by %d, found: %d",
			subsidy, setValue(t, set)-valueBefore)
	}
	if _, ok, _ := set.Get(outpoint); ok {
		t.Fatalf("TestSpendRecordedOutput: the spent output is still in the set")
	}
}

func TestConnectBlockWithExcessiveCoinbase(t *testing.T) {
	params := &chaincfg.RegressionNetParams
	consensus := newTestConsensus(params)
	set, outpoint := recordedOutput(t, 100)
	chain := consensus.NewActiveChain(set)
	builder := testutils.NewChainBuilder(params)

	// The coinbase claims one unit more than the subsidy and fees
	block, err := builder.BuildBlock(11, testutils.SpendOutput(outpoint, 100, 10))
	if err != nil {
		t.Fatalf("BuildBlock: %+v", err)
	}
	before := snapshot(t, set)

	result, err := consensus.ConnectBlock(chain, block, externalapi.BFNone)
	if !ruleerrors.Is(err, ruleerrors.ConsensusRuleViolation) {
		t.Fatalf("TestConnectBlockWithExcessiveCoinbase: Expected a ConsensusRuleViolation, found: %v", err)
	}
	if !errors.Is(err, ruleerrors.ErrBadCoinbaseValue) {
		t.Fatalf("TestConnectBlockWithExcessiveCoinbase: Expected %v, found: %v", ruleerrors.ErrBadCoinbaseValue, err)
	}
	if result == nil || result.State != externalapi.StateRejected {
		t.Fatalf("TestConnectBlockWithExcessiveCoinbase: Expected a rejected result, found: %v", result)
	}
	if !reflect.DeepEqual(snapshot(t, set), before) {
		t.Fatalf("TestConnectBlockWithExcessiveCoinbase: the UTXO set was modified")
	}
	if len(chain.Blocks) != 0 || chain.Supply != 0 {
		t.Fatalf("TestConnectBlockWithExcessiveCoinbase: the chain was modified")
	}
}

func TestScriptEvaluation(t *testing.T) {
	tx := transactionhelper.NewNativeTransaction(2, []*externalapi.DomainTransactionInput{{
		PreviousOutpoint: *externalapi.NewDomainOutpoint(&externalapi.DomainTransactionID{}, 0),
	}}, []*externalapi.DomainTransactionOutput{{Value: 1, ScriptPublicKey: []byte{txscript.OpTrue}}})

	tests := []struct {
		name          string
		scriptPubKey  []byte
		expectSuccess bool
	}{
		{name: "single truthy push", scriptPubKey: []byte{txscript.OpTrue}, expectSuccess: true},
		{name: "empty scripts", scriptPubKey: nil, expectSuccess: false},
		{name: "single falsy push", scriptPubKey: []byte{txscript.OpFalse}, expectSuccess: false},
	}
	for _, test := range tests {
		err := txscript.VerifyScript(test.scriptPubKey, tx, 0, 0, nil, nil, 1)
		if (err == nil) != test.expectSuccess {
			t.Fatalf("TestScriptEvaluation: %s: Expected success %t, found error: %v",
				test.name, test.expectSuccess, err)
		}
	}
}

func TestConnectDisconnectRestoresSet(t *testing.T) {
	params := &chaincfg.RegressionNetParams
	consensus := newTestConsensus(params)
	set, outpoint := recordedOutput(t, 1000)
	chain := consensus.NewActiveChain(set)
	builder := testutils.NewChainBuilder(params)
	initial := snapshot(t, set)

	spend := testutils.SpendOutput(outpoint, 1000, 100)
	respend := testutils.SpendOutput(testutils.OutpointOf(spend, 0), 900, 50)
	blocks := make([]*externalapi.DomainBlock, 3)
	for i := range blocks {
		var err error
		switch i {
		case 1:
			blocks[i], err = builder.NextBlock(150, spend, respend)
		default:
			blocks[i], err = builder.NextBlock(0)
		}
		if err != nil {
			t.Fatalf("NextBlock: %+v", err)
		}
		_, err = consensus.ConnectBlock(chain, blocks[i], externalapi.BFNone)
		if err != nil {
			t.Fatalf("TestConnectDisconnectRestoresSet: ConnectBlock %d: %+v", i, err)
		}
	}

	for i := len(blocks) - 1; i >= 0; i-- {
		removed, err := consensus.DisconnectTip(chain)
		if err != nil {
			t.Fatalf("TestConnectDisconnectRestoresSet: DisconnectTip: %+v", err)
		}
		if removed.Block != blocks[i] {
			t.Fatalf("TestConnectDisconnectRestoresSet: Expected block %d to be disconnected", i)
		}
	}
	if !reflect.DeepEqual(snapshot(t, set), initial) {
		t.Fatalf("TestConnectDisconnectRestoresSet: Expected set %s, found: %s", spew.Sdump(initial),
			spew.Sdump(snapshot(t, set)))
	}
	if chain.Supply != 0 || chain.Work.Sign() != 0 {
		t.Fatalf("TestConnectDisconnectRestoresSet: Expected zero supply and work, found: %d, %s",
			chain.Supply, chain.Work)
	}

	_, err := consensus.DisconnectTip(chain)
	if err == nil {
		t.Fatalf("TestConnectDisconnectRestoresSet: Expected an error disconnecting from an empty chain")
	}
}

func TestConsensusReorganizeChain(t *testing.T) {
	params := &chaincfg.RegressionNetParams
	consensus := newTestConsensus(params)
	set, _ := recordedOutput(t, 1000)
	active := consensus.NewActiveChain(set)
	builder := testutils.NewChainBuilder(params)
	for i := 0; i < 2; i++ {
		block, err := builder.NextBlock(0)
		if err != nil {
			t.Fatalf("NextBlock: %+v", err)
		}
		_, err = consensus.ConnectBlock(active, block, externalapi.BFNone)
		if err != nil {
			t.Fatalf("ConnectBlock: %+v", err)
		}
	}

	forkBuilder := builder.Fork(1, 1)
	competing := make([]*externalapi.DomainBlock, 2)
	for i := range competing {
		var err error
		competing[i], err = forkBuilder.NextBlock(0)
		if err != nil {
			t.Fatalf("NextBlock: %+v", err)
		}
	}

	reorganized, err := consensus.ReorganizeChain(active, competing, externalapi.BFNone)
	if err != nil {
		t.Fatalf("TestConsensusReorganizeChain: %+v", err)
	}
	if !reorganized.TipHash().Equal(forkBuilder.TipHash()) {
		t.Fatalf("TestConsensusReorganizeChain: Expected tip %s, found: %s",
			forkBuilder.TipHash(), reorganized.TipHash())
	}
	if len(active.Blocks) != 2 {
		t.Fatalf("TestConsensusReorganizeChain: the active chain was modified")
	}
}

func TestGenesisProofOfWork(t *testing.T) {
	testutils.ForAllNets(t, func(t *testing.T, params *chaincfg.Params) {
		consensus := NewFactory().NewConsensus(&Config{Params: *params})
		err := consensus.CheckProofOfWork(params.GenesisBlock.Header)
		if err != nil {
			t.Fatalf("TestGenesisProofOfWork: %s: %+v", params.Name, err)
		}
	})
}
