package difficultymanager

import (
	"testing"

	"github.com/kaspanet/btcconsensus/domain/chaincfg"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
)

func makeWindow(size int, firstTimestamp, lastTimestamp, bits uint32) []*externalapi.DomainBlockHeader {
	window := make([]*externalapi.DomainBlockHeader, size)
	for i := range window {
		window[i] = &externalapi.DomainBlockHeader{
			Version:   1,
			Timestamp: firstTimestamp + uint32(i)*600,
			Bits:      bits,
		}
	}
	window[0].Timestamp = firstTimestamp
	window[size-1].Timestamp = lastTimestamp
	return window
}

func TestNextWorkRequired(t *testing.T) {
	params := &chaincfg.MainnetParams
	tests := []struct {
		name           string
		firstTimestamp uint32
		lastTimestamp  uint32
		bits           uint32
		expectedBits   uint32
	}{
		// The first mainnet retarget, at height 32256
		{"mainnet block 32256", 1261130161, 1262152739, 0x1d00ffff, 0x1d00d86a},
		{"on schedule", 1261130161, 1261130161 + 1209600, 0x1d00ffff, 0x1d00ffff},
		{"clamped to a quarter", 1261130161, 1261130162, 0x1d00ffff, 0x1c3fffc0},
		{"clamped to the limit", 1261130161, 1261130161 + 1000000000, 0x1d00ffff, 0x1d00ffff},
		{"timestamps going back", 1261130161, 1261130000, 0x1d00ffff, 0x1c3fffc0},
	}

	for _, test := range tests {
		window := makeWindow(2016, test.firstTimestamp, test.lastTimestamp, test.bits)
		bits, err := NextWorkRequired(window, params)
		if err != nil {
			t.Fatalf("TestNextWorkRequired (%s): NextWorkRequired: %v", test.name, err)
		}
		if bits != test.expectedBits {
			t.Errorf("TestNextWorkRequired (%s): Expected %08x, found: %08x", test.name, test.expectedBits, bits)
		}
	}
}

func TestNextWorkRequiredEmptyWindow(t *testing.T) {
	_, err := NextWorkRequired(nil, &chaincfg.MainnetParams)
	if err == nil {
		t.Fatalf("TestNextWorkRequiredEmptyWindow: expected an error")
	}
}

func TestRequiredDifficulty(t *testing.T) {
	mainnet := New(&chaincfg.MainnetParams)
	regtest := New(&chaincfg.RegressionNetParams)
	fullWindow := makeWindow(2016, 1261130161, 1262152739, 0x1d00ffff)
	shortWindow := makeWindow(100, 1261130161, 1262152739, 0x1d00ffff)

	tests := []struct {
		name            string
		manager         interface{ RequiredDifficulty(*externalapi.ChainContext) (uint32, bool, error) }
		chainContext    *externalapi.ChainContext
		expectedBits    uint32
		expectedIsKnown bool
	}{
		{"genesis", mainnet, &externalapi.ChainContext{Height: 0}, 0, false},
		{"no headers", mainnet, &externalapi.ChainContext{Height: 5}, 0, false},
		{"off boundary", mainnet, &externalapi.ChainContext{Height: 32257, PreviousHeaders: shortWindow},
			0x1d00ffff, true},
		{"boundary with full window", mainnet,
			&externalapi.ChainContext{Height: 32256, PreviousHeaders: fullWindow}, 0x1d00d86a, true},
		{"boundary with short window", mainnet,
			&externalapi.ChainContext{Height: 32256, PreviousHeaders: shortWindow}, 0, false},
		{"regtest never retargets", regtest,
			&externalapi.ChainContext{Height: 32256, PreviousHeaders: fullWindow}, 0x1d00ffff, true},
	}

	for _, test := range tests {
		bits, isKnown, err := test.manager.RequiredDifficulty(test.chainContext)
		if err != nil {
			t.Fatalf("TestRequiredDifficulty (%s): RequiredDifficulty: %v", test.name, err)
		}
		if isKnown != test.expectedIsKnown {
			t.Fatalf("TestRequiredDifficulty (%s): Expected isKnown %t, found: %t",
				test.name, test.expectedIsKnown, isKnown)
		}
		if bits != test.expectedBits {
			t.Fatalf("TestRequiredDifficulty (%s): Expected %08x, found: %08x", test.name, test.expectedBits, bits)
		}
	}
}
