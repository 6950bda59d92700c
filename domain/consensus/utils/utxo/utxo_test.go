package utxo

import (
	"testing"

	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
)

func testOutpoint(txIDByte byte, index uint32) *externalapi.DomainOutpoint {
	var id [externalapi.DomainHashSize]byte
	id[0] = txIDByte
	return externalapi.NewDomainOutpoint(externalapi.NewDomainTransactionIDFromByteArray(&id), index)
}

func testEntry(amount externalapi.Amount) externalapi.UTXOEntry {
	return NewUTXOEntry(amount, []byte{0x51}, false, 1)
}

func collectionOf(pairs ...interface{}) utxoCollection {
	collection := utxoCollection{}
	for i := 0; i < len(pairs); i += 2 {
		collection.add(pairs[i].(*externalapi.DomainOutpoint), pairs[i+1].(externalapi.UTXOEntry))
	}
	return collection
}

func setOf(t *testing.T, pairs ...interface{}) *InMemoryUTXOSet {
	set := NewInMemoryUTXOSet()
	for i := 0; i < len(pairs); i += 2 {
		err := set.Insert(pairs[i].(*externalapi.DomainOutpoint), pairs[i+1].(externalapi.UTXOEntry))
		if err != nil {
			t.Fatalf("Insert: %s", err)
		}
	}
	return set
}

func setsEqual(t *testing.T, a, b externalapi.UTXOSetIterator) bool {
	var aPairs, bPairs []string
	collect := func(pairs *[]string) func(*externalapi.DomainOutpoint, externalapi.UTXOEntry) error {
		return func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
			serialized, err := SerializeUTXO(entry, outpoint)
			if err != nil {
				return err
			}
			*pairs = append(*pairs, string(serialized))
			return nil
		}
	}
	if err := a.ForEach(collect(&aPairs)); err != nil {
		t.Fatalf("ForEach: %s", err)
	}
	if err := b.ForEach(collect(&bPairs)); err != nil {
		t.Fatalf("ForEach: %s", err)
	}
	if len(aPairs) != len(bPairs) {
		return false
	}
	for i := range aPairs {
		if aPairs[i] != bPairs[i] {
			return false
		}
	}
	return true
}

func TestUTXOEntryEqual(t *testing.T) {
	base := NewUTXOEntry(10, []byte{1, 2}, true, 5)
	tests := []struct {
		name     string
		other    externalapi.UTXOEntry
		expected bool
	}{
		{"same", NewUTXOEntry(10, []byte{1, 2}, true, 5), true},
		{"amount", NewUTXOEntry(11, []byte{1, 2}, true, 5), false},
		{"script", NewUTXOEntry(10, []byte{1, 3}, true, 5), false},
		{"coinbase", NewUTXOEntry(10, []byte{1, 2}, false, 5), false},
		{"height", NewUTXOEntry(10, []byte{1, 2}, true, 6), false},
		{"nil", nil, false},
	}
	for _, test := range tests {
		if base.Equal(test.other) != test.expected {
			t.Fatalf("TestUTXOEntryEqual: %s: Expected %t, found: %t", test.name, test.expected, !test.expected)
		}
	}

	script := []byte{7}
	entry := NewUTXOEntry(1, script, false, 0)
	script[0] = 8
	if entry.ScriptPublicKey()[0] != 7 {
		t.Fatalf("TestUTXOEntryEqual: NewUTXOEntry didn't copy the script")
	}
}

func TestCollectionForEachOrder(t *testing.T) {
	collection := collectionOf(
		testOutpoint(2, 0), testEntry(1),
		testOutpoint(1, 5), testEntry(2),
		testOutpoint(1, 1), testEntry(3),
	)
	var visited []externalapi.DomainOutpoint
	err := collection.ForEach(func(outpoint *externalapi.DomainOutpoint, _ externalapi.UTXOEntry) error {
		visited = append(visited, *outpoint)
		return nil
	})
	if err != nil {
		t.Fatalf("TestCollectionForEachOrder: ForEach: %s", err)
	}
	expected := []externalapi.DomainOutpoint{*testOutpoint(1, 1), *testOutpoint(1, 5), *testOutpoint(2, 0)}
	for i := range expected {
		if visited[i] != expected[i] {
			t.Fatalf("TestCollectionForEachOrder: Expected %s at %d, found: %s", expected[i], i, visited[i])
		}
	}
}
