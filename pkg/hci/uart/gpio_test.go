package uart

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGPIOPower(t *testing.T) {
	testCases := []struct {
		name      string
		activeLow bool
		on        bool
		expect    string
	}{
		{"on", false, true, "1"},
		{"off", false, false, "0"},
		{"active low on", true, true, "0"},
		{"active low off", true, false, "1"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "value")
			require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
			g := &GPIOPower{ValuePath: path, ActiveLow: tc.activeLow}
			require.NoError(t, g.SetPower(tc.on))
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			require.Equal(t, tc.expect, string(data))
		})
	}
}

func TestGPIOPowerMissing(t *testing.T) {
	g := &GPIOPower{ValuePath: filepath.Join(t.TempDir(), "missing", "value")}
	require.Error(t, g.SetPower(true))
}
