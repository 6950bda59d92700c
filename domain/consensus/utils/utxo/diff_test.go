package utxo

import (
	"testing"
)

func TestWithDiff(t *testing.T) {
	outpoint0 := testOutpoint(0, 0)
	entry1 := testEntry(10)
	entry2 := testEntry(20)

	tests := []struct {
		name             string
		this             *UTXODiff
		other            *UTXODiff
		expectedToAdd    utxoCollection
		expectedToRemove utxoCollection
		expectError      bool
	}{
		{
			name:          "add then nothing",
			this:          &UTXODiff{toAdd: collectionOf(outpoint0, entry1), toRemove: utxoCollection{}},
			other:         NewUTXODiff(),
			expectedToAdd: collectionOf(outpoint0, entry1), expectedToRemove: utxoCollection{},
		},
		{
			name:          "add then remove",
			this:          &UTXODiff{toAdd: collectionOf(outpoint0, entry1), toRemove: utxoCollection{}},
			other:         &UTXODiff{toAdd: utxoCollection{}, toRemove: collectionOf(outpoint0, entry1)},
			expectedToAdd: utxoCollection{}, expectedToRemove: utxoCollection{},
		},
		{
			name:          "remove then re-add the same entry",
			this:          &UTXODiff{toAdd: utxoCollection{}, toRemove: collectionOf(outpoint0, entry1)},
			other:         &UTXODiff{toAdd: collectionOf(outpoint0, entry1), toRemove: utxoCollection{}},
			expectedToAdd: utxoCollection{}, expectedToRemove: utxoCollection{},
		},
		{
			name:        "remove then add a different entry",
			this:        &UTXODiff{toAdd: utxoCollection{}, toRemove: collectionOf(outpoint0, entry1)},
			other:       &UTXODiff{toAdd: collectionOf(outpoint0, entry2), toRemove: utxoCollection{}},
			expectError: true,
		},
		{
			name:        "add twice",
			this:        &UTXODiff{toAdd: collectionOf(outpoint0, entry1), toRemove: utxoCollection{}},
			other:       &UTXODiff{toAdd: collectionOf(outpoint0, entry1), toRemove: utxoCollection{}},
			expectError: true,
		},
		{
			name:        "remove twice",
			this:        &UTXODiff{toAdd: utxoCollection{}, toRemove: collectionOf(outpoint0, entry1)},
			other:       &UTXODiff{toAdd: utxoCollection{}, toRemove: collectionOf(outpoint0, entry1)},
			expectError: true,
		},
		{
			name:          "nothing then remove",
			this:          NewUTXODiff(),
			other:         &UTXODiff{toAdd: utxoCollection{}, toRemove: collectionOf(outpoint0, entry1)},
			expectedToAdd: utxoCollection{}, expectedToRemove: collectionOf(outpoint0, entry1),
		},
	}

	for _, test := range tests {
		result, err := test.this.WithDiff(test.other)
		if test.expectError {
			if err == nil {
				t.Fatalf("TestWithDiff: %s: Expected an error", test.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("TestWithDiff: %s: unexpected error: %s", test.name, err)
		}
		if result.toAdd.String() != test.expectedToAdd.String() {
			t.Fatalf("TestWithDiff: %s: Expected toAdd %s, found: %s", test.name, test.expectedToAdd, result.toAdd)
		}
		if result.toRemove.String() != test.expectedToRemove.String() {
			t.Fatalf("TestWithDiff: %s: Expected toRemove %s, found: %s",
				test.name, test.expectedToRemove, result.toRemove)
		}
	}
}

func TestNewUTXODiffFromCollections(t *testing.T) {
	outpoint := testOutpoint(3, 1)
	_, err := NewUTXODiffFromCollections(collectionOf(outpoint, testEntry(1)), collectionOf(outpoint, testEntry(1)))
	if err == nil {
		t.Fatalf("TestNewUTXODiffFromCollections: Expected an error for a shared outpoint")
	}

	diff, err := NewUTXODiffFromCollections(collectionOf(outpoint, testEntry(1)), utxoCollection{})
	if err != nil {
		t.Fatalf("TestNewUTXODiffFromCollections: %s", err)
	}
	reversed := diff.Reversed()
	if reversed.ToAdd().Len() != 0 || !reversed.ToRemove().Contains(outpoint) {
		t.Fatalf("TestNewUTXODiffFromCollections: Unexpected reversed diff %s", reversed)
	}
}

func TestDiffAddRemoveEntry(t *testing.T) {
	outpoint := testOutpoint(1, 0)
	entry := testEntry(5)

	diff := NewUTXODiff()
	if err := diff.addEntry(outpoint, entry); err != nil {
		t.Fatalf("TestDiffAddRemoveEntry: addEntry: %s", err)
	}
	if err := diff.addEntry(outpoint, entry); err == nil {
		t.Fatalf("TestDiffAddRemoveEntry: Expected an error adding twice")
	}
	if err := diff.removeEntry(outpoint, entry); err != nil {
		t.Fatalf("TestDiffAddRemoveEntry: removeEntry: %s", err)
	}
	if diff.toAdd.Len() != 0 || diff.toRemove.Len() != 0 {
		t.Fatalf("TestDiffAddRemoveEntry: Expected an empty diff, found: %s", diff)
	}

	if err := diff.removeEntry(outpoint, entry); err != nil {
		t.Fatalf("TestDiffAddRemoveEntry: removeEntry: %s", err)
	}
	if err := diff.removeEntry(outpoint, entry); err == nil {
		t.Fatalf("TestDiffAddRemoveEntry: Expected an error removing twice")
	}
	if err := diff.addEntry(outpoint, entry); err == nil {
		t.Fatalf("TestDiffAddRemoveEntry: Expected an error adding a removed outpoint")
	}
}
