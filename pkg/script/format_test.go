package script

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/radio.go/pkg/hci"
)

func decoderOf(data []byte) *Decoder {
	return NewDecoder(bytes.NewReader(data), len(data))
}

func TestDecodeActions(t *testing.T) {
	data := NewEncoder(2).
		Command(hci.OpcodeReset).
		Delay(20).
		Remark("hello").
		Bytes()
	require.Equal(t, []byte("BTSB"), data[:4])

	dec := decoderOf(data)
	h, err := dec.ReadHeader()
	require.NoError(t, err)
	require.Equal(t, Magic, h.Magic)
	require.EqualValues(t, 2, h.Version)
	require.Equal(t, HeaderSize, dec.Cursor())

	var types []ActionType
	for !dec.Done() {
		a, err := dec.Next()
		require.NoError(t, err)
		types = append(types, a.Type)
		switch a.Type {
		case ActionSendCommand:
			cmd, err := hci.ParseCommand(a.Data)
			require.NoError(t, err)
			require.Equal(t, hci.OpcodeReset, cmd.Opcode)
		case ActionDelay:
			ms, ok := DelayDuration(a.Data)
			require.True(t, ok)
			require.EqualValues(t, 20, ms)
		}
	}
	require.Equal(t, []ActionType{ActionSendCommand, ActionWaitForComplete, ActionDelay, ActionRemark}, types)
	require.Equal(t, 0, dec.Remaining())
}

func TestDecodeErrors(t *testing.T) {
	valid := NewEncoder(1).Command(hci.OpcodeReset).Bytes()
	badMagic := append([]byte(nil), valid...)
	badMagic[0] = 'X'

	testCases := []struct {
		name   string
		data   []byte
		header bool
	}{
		{"short header", valid[:HeaderSize-1], true},
		{"bad magic", badMagic, true},
		{"truncated action", valid[:len(valid)-2], false},
		{"trailing bytes", append(append([]byte(nil), valid...), 1, 2), false},
		{"oversized action", NewEncoder(1).Action(ActionRemark, make([]byte, MaxActionSize+1)).Bytes(), false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dec := decoderOf(tc.data)
			_, err := dec.ReadHeader()
			if tc.header {
				require.IsType(t, &FormatError{}, err)
				return
			}
			require.NoError(t, err)
			for err == nil && !dec.Done() {
				_, err = dec.Next()
			}
			require.IsType(t, &FormatError{}, err)
		})
	}
}

func TestTable(t *testing.T) {
	table := &Table{}
	_, ok := table.Lookup("tiinit_7.2.0.bts")
	require.False(t, ok)
	table.Register("tiinit_7.2.0.bts", []byte{1})
	data, ok := table.Lookup("tiinit_7.2.0.bts")
	require.True(t, ok)
	require.Equal(t, []byte{1}, data)
}
