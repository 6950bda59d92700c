// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"testing"

	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"pgregory.net/rapid"
)

// TestCheckErrorCondition tests the execute early test in CheckErrorCondition()
// since most code paths are tested elsewhere.
func TestCheckErrorCondition(t *testing.T) {
	t.Parallel()

	tx := newSpendingTx(1)
	scriptPubKey := mustParseShortForm("NOP NOP NOP NOP NOP NOP NOP NOP NOP NOP TRUE")

	vm, err := NewEngine(scriptPubKey, tx, 0, 0, nil, nil, 0)
	if err != nil {
		t.Fatalf("TestCheckErrorCondition: failed to create script: %v", err)
	}

	for i := 0; i < len(scriptPubKey)-1; i++ {
		done, err := vm.Step()
		if err != nil {
			t.Fatalf("TestCheckErrorCondition: failed to step %dth time: %v", i, err)
		}
		if done {
			t.Fatalf("TestCheckErrorCondition: finished early on %dth time", i)
		}

		err = vm.CheckErrorCondition(true)
		if !IsErrorCode(err, ErrScriptUnfinished) {
			t.Fatalf("TestCheckErrorCondition: got unexpected error %v on %dth iteration", err, i)
		}
	}
	done, err := vm.Step()
	if err != nil {
		t.Fatalf("TestCheckErrorCondition: final step failed %v", err)
	}
	if !done {
		t.Fatalf("TestCheckErrorCondition: final step isn't done!")
	}

	err = vm.CheckErrorCondition(true)
	if err != nil {
		t.Errorf("TestCheckErrorCondition: unexpected error %v on final check", err)
	}

	_, err = vm.Step()
	if !IsErrorCode(err, ErrInvalidProgramCounter) {
		t.Errorf("TestCheckErrorCondition: Expected ErrInvalidProgramCounter, found: %v", err)
	}
}

func TestNewEngineErrors(t *testing.T) {
	t.Parallel()

	tx := newSpendingTx(1)
	tests := []struct {
		name         string
		scriptPubKey []byte
		sigScript    []byte
		witness      [][]byte
		txIdx        int
		flags        ScriptFlags
		expected     ErrorCode
	}{
		{
			name:         "negative index",
			scriptPubKey: []byte{OpTrue},
			txIdx:        -1,
			expected:     ErrInvalidIndex,
		},
		{
			name:         "index past the inputs",
			scriptPubKey: []byte{OpTrue},
			txIdx:        1,
			expected:     ErrInvalidIndex,
		},
		{
			name:         "clean stack without p2sh",
			scriptPubKey: []byte{OpTrue},
			flags:        ScriptVerifyCleanStack,
			expected:     ErrInvalidFlags,
		},
		{
			name:     "both scripts empty",
			expected: ErrEvalFalse,
		},
		{
			name:         "script too big",
			scriptPubKey: bytes.Repeat([]byte{OpNop}, MaxScriptSize+1),
			expected:     ErrScriptTooBig,
		},
		{
			name:         "malformed push",
			scriptPubKey: []byte{OpData2, 0x01},
			expected:     ErrMalformedPush,
		},
		{
			name:         "non push-only signature script",
			scriptPubKey: []byte{OpTrue},
			sigScript:    []byte{OpNop},
			flags:        ScriptVerifySigPushOnly,
			expected:     ErrNotPushOnly,
		},
		{
			name:         "witness on a non witness input",
			scriptPubKey: []byte{OpTrue},
			witness:      [][]byte{{0x01}},
			flags:        ScriptBip16 | ScriptVerifyWitness,
			expected:     ErrWitnessUnexpected,
		},
	}

	for _, test := range tests {
		tx.Inputs[0].SignatureScript = test.sigScript
		tx.Inputs[0].Witness = test.witness
		_, err := NewEngine(test.scriptPubKey, tx, test.txIdx, test.flags, nil, nil, 0)
		if !IsErrorCode(err, test.expected) {
			t.Errorf("TestNewEngineErrors: %s: Expected %s, found: %v", test.name, test.expected, err)
		}
	}
}

func TestDisasm(t *testing.T) {
	t.Parallel()

	tx := newSpendingTx(1)
	tx.Inputs[0].SignatureScript = mustParseShortForm("1 2")
	vm, err := NewEngine(mustParseShortForm("ADD 3 EQUAL"), tx, 0, 0, nil, nil, 0)
	if err != nil {
		t.Fatalf("TestDisasm: NewEngine: %s", err)
	}

	pc, err := vm.DisasmPC()
	if err != nil {
		t.Fatalf("TestDisasm: DisasmPC: %s", err)
	}
	if pc != "00:0000: OP_1" {
		t.Errorf("TestDisasm: Expected 00:0000: OP_1, found: %s", pc)
	}

	dis, err := vm.DisasmScript(1)
	if err != nil {
		t.Fatalf("TestDisasm: DisasmScript: %s", err)
	}
	expected := "01:0000: OP_ADD\n01:0001: OP_3\n01:0002: OP_EQUAL\n"
	if dis != expected {
		t.Errorf("TestDisasm: Expected %q, found: %q", expected, dis)
	}

	_, err = vm.DisasmScript(2)
	if !IsErrorCode(err, ErrInvalidIndex) {
		t.Errorf("TestDisasm: Expected ErrInvalidIndex, found: %v", err)
	}

	err = vm.Execute()
	if err != nil {
		t.Fatalf("TestDisasm: Execute: %s", err)
	}
}

func TestSetStackCopies(t *testing.T) {
	t.Parallel()

	tx := newSpendingTx(1)
	vm, err := NewEngine([]byte{OpTrue}, tx, 0, 0, nil, nil, 0)
	if err != nil {
		t.Fatalf("TestSetStackCopies: NewEngine: %s", err)
	}

	data := [][]byte{{0x01}, {0x02, 0x03}}
	vm.SetStack(data)
	data[0][0] = 0xff

	stack := vm.GetStack()
	if len(stack) != 2 || stack[0][0] != 0x01 {
		t.Fatalf("TestSetStackCopies: Expected the stack to be unaffected, found: %x", stack)
	}

	stack[1][0] = 0xff
	if vm.GetStack()[1][0] != 0x02 {
		t.Fatalf("TestSetStackCopies: Expected GetStack to return a copy, found: %x", vm.GetStack())
	}
}

func TestScriptNumRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.Int64Range(-(1<<31)+1, (1<<31)-1).Draw(t, "n")
		encoded := scriptNum(n).Bytes()
		decoded, err := makeScriptNum(encoded, true, defaultScriptNumLen)
		if err != nil {
			t.Fatalf("makeScriptNum(%x): %s", encoded, err)
		}
		if int64(decoded) != n {
			t.Fatalf("Expected %d, found: %d", n, decoded)
		}
	})
}

func TestStackOps(t *testing.T) {
	t.Parallel()

	var s stack
	for i := 1; i <= 4; i++ {
		s.PushInt(scriptNum(i))
	}
	if err := s.RotN(1); err != nil {
		t.Fatalf("TestStackOps: RotN: %s", err)
	}
	if err := s.SwapN(1); err != nil {
		t.Fatalf("TestStackOps: SwapN: %s", err)
	}
	if err := s.DupN(2); err != nil {
		t.Fatalf("TestStackOps: DupN: %s", err)
	}
	expected := []int64{1, 3, 2, 4, 2, 4}
	if int(s.Depth()) != len(expected) {
		t.Fatalf("TestStackOps: Expected depth %d, found: %d", len(expected), s.Depth())
	}
	for i := len(expected) - 1; i >= 0; i-- {
		n, err := s.PopInt()
		if err != nil {
			t.Fatalf("TestStackOps: PopInt: %s", err)
		}
		if int64(n) != expected[i] {
			t.Fatalf("TestStackOps: Expected %d at %d, found: %d", expected[i], i, n)
		}
	}
	_, err := s.PopByteArray()
	if !IsErrorCode(err, ErrInvalidStackOperation) {
		t.Fatalf("TestStackOps: Expected ErrInvalidStackOperation, found: %v", err)
	}
}

// drawScript draws a script mixing small integers, data pushes and
// non-push opcodes, so executions usually get past the first few opcodes
func drawScript(t *rapid.T, label string) []byte {
	builder := NewScriptBuilder()
	elementCount := rapid.IntRange(0, 24).Draw(t, label+"Len")
	for i := 0; i < elementCount; i++ {
		switch rapid.IntRange(0, 2).Draw(t, label+"Kind") {
		case 0:
			builder.AddInt64(rapid.Int64Range(-1, 300).Draw(t, label+"Int"))
		case 1:
			builder.AddData(rapid.SliceOfN(rapid.Byte(), 0, 40).Draw(t, label+"Data"))
		default:
			builder.AddOp(rapid.ByteRange(OpNop, OpNop10).Draw(t, label+"Op"))
		}
	}
	script, err := builder.Script()
	if err != nil {
		t.Fatalf("Script: %s", err)
	}
	return script
}

// TestExecuteIsDeterministic runs the same scripts on the same initial stack
// twice and expects the same outcome and the same final stack
func TestExecuteIsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sigScript := drawScript(t, "sigScript")
		scriptPubKey := drawScript(t, "scriptPubKey")
		initialStack := rapid.SliceOfN(rapid.SliceOfN(rapid.Byte(), 0, 8), 0, 6).Draw(t, "stack")
		flags := ScriptFlags(rapid.SampledFrom([]ScriptFlags{0, StandardVerifyFlags &^ ScriptVerifyCleanStack}).
			Draw(t, "flags"))

		run := func() ([][]byte, error) {
			tx := newSpendingTx(1)
			tx.Inputs[0].SignatureScript = sigScript
			vm, err := NewEngine(scriptPubKey, tx, 0, flags, nil, nil, externalapi.Amount(1))
			if err != nil {
				return nil, err
			}
			vm.SetStack(initialStack)
			err = vm.Execute()
			return vm.GetStack(), err
		}

		firstStack, firstErr := run()
		secondStack, secondErr := run()
		if (firstErr == nil) != (secondErr == nil) ||
			(firstErr != nil && firstErr.Error() != secondErr.Error()) {
			t.Fatalf("Expected the same error twice, found: %v and %v", firstErr, secondErr)
		}
		if len(firstStack) != len(secondStack) {
			t.Fatalf("Expected the same stack twice, found: %x and %x", firstStack, secondStack)
		}
		for i := range firstStack {
			if !bytes.Equal(firstStack[i], secondStack[i]) {
				t.Fatalf("Expected the same stack twice, found: %x and %x", firstStack, secondStack)
			}
		}
	})
}

// FuzzExecuteScript runs arbitrary script pairs through the engine. Any
// outcome other than a panic is acceptable.
func FuzzExecuteScript(f *testing.F) {
	f.Add([]byte{OpTrue}, []byte{})
	f.Add(mustParseShortForm("1 2"), mustParseShortForm("ADD 3 EQUAL"))
	f.Add([]byte{}, mustParseShortForm("0 DATA_20 0x1111111111111111111111111111111111111111"))
	f.Add(mustParseShortForm("0 0"), mustParseShortForm("0 0 CHECKMULTISIG"))

	f.Fuzz(func(t *testing.T, sigScript, scriptPubKey []byte) {
		tx := newSpendingTx(1)
		tx.Inputs[0].SignatureScript = sigScript
		vm, err := NewEngine(scriptPubKey, tx, 0, StandardVerifyFlags, nil, nil, externalapi.Amount(1))
		if err != nil {
			return
		}
		_ = vm.Execute()
	})
}
