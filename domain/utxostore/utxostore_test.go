package utxostore

import (
	"os"
	"testing"

	"github.com/kaspanet/btcconsensus/domain/chaincfg"
	"github.com/kaspanet/btcconsensus/domain/consensus"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/consensushashing"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/multiset"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/testutils"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/txscript"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/utxo"
	"github.com/kaspanet/btcconsensus/infrastructure/db/database/ldb"
)

func prepareStoreForTest(t *testing.T, testName string) (store *Store, teardownFunc func()) {
	path, err := os.MkdirTemp("", testName)
	if err != nil {
		t.Fatalf("%s: TempDir unexpectedly failed: %s", testName, err)
	}
	db, err := ldb.NewLevelDB(path, 8)
	if err != nil {
		t.Fatalf("%s: NewLevelDB unexpectedly failed: %s", testName, err)
	}
	teardownFunc = func() {
		err := db.Close()
		if err != nil {
			t.Fatalf("%s: Close unexpectedly failed: %s", testName, err)
		}
		os.RemoveAll(path)
	}
	return New(db), teardownFunc
}

func testOutpoint(id byte, index uint32) *externalapi.DomainOutpoint {
	var txID [externalapi.DomainHashSize]byte
	txID[0] = id
	return externalapi.NewDomainOutpoint(externalapi.NewDomainTransactionIDFromByteArray(&txID), index)
}

func commitment(t *testing.T, set externalapi.UTXOSetIterator) *externalapi.DomainHash {
	ms := multiset.New()
	err := utxo.AddSetToMultiset(ms, set)
	if err != nil {
		t.Fatalf("AddSetToMultiset: %+v", err)
	}
	return ms.Hash()
}

func TestStoreSanity(t *testing.T) {
	store, teardownFunc := prepareStoreForTest(t, "TestStoreSanity")
	defer teardownFunc()

	outpoint := testOutpoint(1, 300)
	entry := utxo.NewUTXOEntry(5000, []byte{txscript.OpTrue}, true, 7)
	err := store.Insert(outpoint, entry)
	if err != nil {
		t.Fatalf("TestStoreSanity: Insert: %+v", err)
	}

	stored, found, err := store.Get(outpoint)
	if err != nil {
		t.Fatalf("TestStoreSanity: Get: %+v", err)
	}
	if !found || !stored.Equal(entry) {
		t.Fatalf("TestStoreSanity: Expected %v, found: %v", entry, stored)
	}

	_, found, err = store.Get(testOutpoint(1, 301))
	if err != nil {
		t.Fatalf("TestStoreSanity: Get: %+v", err)
	}
	if found {
		t.Fatalf("TestStoreSanity: Expected a missing outpoint not to be found")
	}

	count, err := store.Len()
	if err != nil {
		t.Fatalf("TestStoreSanity: Len: %+v", err)
	}
	if count != 1 {
		t.Fatalf("TestStoreSanity: Expected 1 entry, found: %d", count)
	}

	err = store.Remove(outpoint)
	if err != nil {
		t.Fatalf("TestStoreSanity: Remove: %+v", err)
	}
	_, found, err = store.Get(outpoint)
	if err != nil {
		t.Fatalf("TestStoreSanity: Get: %+v", err)
	}
	if found {
		t.Fatalf("TestStoreSanity: Expected the removed outpoint not to be found")
	}
}

func TestStoreApplyDiffIsAtomic(t *testing.T) {
	store, teardownFunc := prepareStoreForTest(t, "TestStoreApplyDiffIsAtomic")
	defer teardownFunc()

	present := testOutpoint(1, 0)
	err := store.Insert(present, utxo.NewUTXOEntry(10, []byte{txscript.OpTrue}, false, 1))
	if err != nil {
		t.Fatalf("TestStoreApplyDiffIsAtomic: Insert: %+v", err)
	}
	before := commitment(t, store)

	// Spends the present output and a missing one
	tx := testutils.SpendOutput(present, 10, 0)
	tx.Inputs = append(tx.Inputs, &externalapi.DomainTransactionInput{
		PreviousOutpoint: *testOutpoint(2, 0),
		Sequence:         tx.Inputs[0].Sequence,
	})
	memorySet := utxo.NewInMemoryUTXOSet()
	err = memorySet.Insert(present, utxo.NewUTXOEntry(10, []byte{txscript.OpTrue}, false, 1))
	if err != nil {
		t.Fatalf("TestStoreApplyDiffIsAtomic: Insert: %+v", err)
	}
	err = memorySet.Insert(testOutpoint(2, 0), utxo.NewUTXOEntry(1, []byte{txscript.OpTrue}, false, 1))
	if err != nil {
		t.Fatalf("TestStoreApplyDiffIsAtomic: Insert: %+v", err)
	}
	view := utxo.NewDiffView(memorySet)
	err = view.AddTransaction(tx, 2)
	if err != nil {
		t.Fatalf("TestStoreApplyDiffIsAtomic: AddTransaction: %+v", err)
	}

	err = store.ApplyDiff(view.Diff())
	if err == nil {
		t.Fatalf("TestStoreApplyDiffIsAtomic: Expected an error removing a missing outpoint")
	}
	if !commitment(t, store).Equal(before) {
		t.Fatalf("TestStoreApplyDiffIsAtomic: the store was modified by a failed diff")
	}

	err = memorySet.ApplyDiff(view.Diff())
	if err != nil {
		t.Fatalf("TestStoreApplyDiffIsAtomic: ApplyDiff: %+v", err)
	}
	err = store.Insert(testOutpoint(2, 0), utxo.NewUTXOEntry(1, []byte{txscript.OpTrue}, false, 1))
	if err != nil {
		t.Fatalf("TestStoreApplyDiffIsAtomic: Insert: %+v", err)
	}
	err = store.ApplyDiff(view.Diff())
	if err != nil {
		t.Fatalf("TestStoreApplyDiffIsAtomic: ApplyDiff: %+v", err)
	}
	if !commitment(t, store).Equal(commitment(t, memorySet)) {
		t.Fatalf("TestStoreApplyDiffIsAtomic: the store and the in-memory set differ")
	}
}

// TestStoreBackedChain connects and disconnects blocks on a chain whose set
// lives in the store and checks it tracks an in-memory chain
func TestStoreBackedChain(t *testing.T) {
	store, teardownFunc := prepareStoreForTest(t, "TestStoreBackedChain")
	defer teardownFunc()

	params := &chaincfg.RegressionNetParams
	consensusInstance := consensus.NewFactory().NewConsensus(&consensus.Config{
		Params:           *params,
		VerifyInvariants: true,
	})

	recorded := testOutpoint(0xbb, 0)
	memorySet := utxo.NewInMemoryUTXOSet()
	for _, set := range []externalapi.UTXOSet{store, memorySet} {
		err := set.Insert(recorded, utxo.NewUTXOEntry(1000, []byte{txscript.OpTrue}, false, 0))
		if err != nil {
			t.Fatalf("TestStoreBackedChain: Insert: %+v", err)
		}
	}
	storeChain := consensusInstance.NewActiveChain(store)
	memoryChain := consensusInstance.NewActiveChain(memorySet)

	builder := testutils.NewChainBuilder(params)
	spend := testutils.SpendOutput(recorded, 1000, 25)
	for i := 0; i < 3; i++ {
		var block *externalapi.DomainBlock
		var err error
		if i == 1 {
			block, err = builder.NextBlock(25, spend)
		} else {
			block, err = builder.NextBlock(0)
		}
		if err != nil {
			t.Fatalf("NextBlock: %+v", err)
		}
		for _, chain := range []*externalapi.ActiveChain{storeChain, memoryChain} {
			_, err = consensusInstance.ConnectBlock(chain, block, externalapi.BFNone)
			if err != nil {
				t.Fatalf("TestStoreBackedChain: ConnectBlock %d: %+v", i, err)
			}
		}
		if !commitment(t, store).Equal(commitment(t, memorySet)) {
			t.Fatalf("TestStoreBackedChain: the store and the in-memory set differ after block %d", i)
		}
	}

	for len(storeChain.Blocks) > 0 {
		_, err := consensusInstance.DisconnectTip(storeChain)
		if err != nil {
			t.Fatalf("TestStoreBackedChain: DisconnectTip: %+v", err)
		}
	}
	count, err := store.Len()
	if err != nil {
		t.Fatalf("TestStoreBackedChain: Len: %+v", err)
	}
	if count != 1 {
		t.Fatalf("TestStoreBackedChain: Expected only the recorded output to remain, found %d entries", count)
	}
	if _, found, _ := store.Get(recorded); !found {
		t.Fatalf("TestStoreBackedChain: the recorded output wasn't restored")
	}
}

func TestStoreHeaders(t *testing.T) {
	store, teardownFunc := prepareStoreForTest(t, "TestStoreHeaders")
	defer teardownFunc()

	params := &chaincfg.RegressionNetParams
	builder := testutils.NewChainBuilder(params)
	first, err := builder.NextBlock(0)
	if err != nil {
		t.Fatalf("NextBlock: %+v", err)
	}
	second, err := builder.NextBlock(0)
	if err != nil {
		t.Fatalf("NextBlock: %+v", err)
	}

	store.StageHeader(1, first.Header)
	err = store.ApplyDiff(utxo.NewUTXODiff())
	if err != nil {
		t.Fatalf("TestStoreHeaders: ApplyDiff: %+v", err)
	}

	// A diff that doesn't fit records nothing
	store.StageHeader(2, second.Header)
	err = store.Insert(testOutpoint(2, 0), utxo.NewUTXOEntry(1, []byte{txscript.OpTrue}, false, 1))
	if err != nil {
		t.Fatalf("TestStoreHeaders: Insert: %+v", err)
	}
	badView := utxo.NewDiffView(utxo.NewInMemoryUTXOSet())
	err = badView.Insert(testOutpoint(2, 0), utxo.NewUTXOEntry(1, []byte{txscript.OpTrue}, false, 2))
	if err != nil {
		t.Fatalf("TestStoreHeaders: Insert: %+v", err)
	}
	err = store.ApplyDiff(badView.Diff())
	if err == nil {
		t.Fatalf("TestStoreHeaders: Expected an error adding an existing outpoint")
	}
	store.DiscardStagedHeader()

	headers, err := store.Headers()
	if err != nil {
		t.Fatalf("TestStoreHeaders: Headers: %+v", err)
	}
	if len(headers) != 1 || !consensushashing.HeaderHash(headers[0]).Equal(consensushashing.BlockHash(first)) {
		t.Fatalf("TestStoreHeaders: Expected only the first header, found: %v", headers)
	}
}
