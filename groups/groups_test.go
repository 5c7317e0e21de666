package groups

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestName(t *testing.T) {
	tests := []struct {
		id   uint16
		want string
	}{
		{0x001d, "X25519"},
		{0x0017, "secp256r1"},
		{0x11ec, "X25519MLKEM768"},
		{4588, "X25519MLKEM768"},
		{0x6399, "X25519Kyber768Draft00"},
		{0xabcd, "0xABCD"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Name(tt.id), "id 0x%04x", tt.id)
	}
}

func TestNameMatchesCryptoTLS(t *testing.T) {
	assert.Equal(t, tls.X25519MLKEM768.String(), Name(uint16(tls.X25519MLKEM768)))
	assert.Equal(t, tls.X25519.String(), Name(uint16(tls.X25519)))
}

func TestLookup(t *testing.T) {
	tests := []struct {
		in     string
		want   uint16
		wantOK bool
	}{
		{"X25519MLKEM768", 0x11ec, true},
		{"x25519mlkem768", 0x11ec, true},
		{" X25519 ", 0x001d, true},
		{"P-256", 0x0017, true},
		{"4588", 0x11ec, true},
		{"0x11ec", 0x11ec, true},
		{"nope", 0, false},
		{"70000", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Lookup(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassification(t *testing.T) {
	assert.Equal(t, KindHybrid, KindOfName("X25519MLKEM768"))
	assert.Equal(t, KindClassical, KindOfName("X25519"))
	assert.Equal(t, KindPostQuantum, KindOfName("MLKEM1024"))
	assert.Equal(t, KindUnknown, KindOfName("Unknown (no ephemeral key info)"))

	assert.True(t, IsPostQuantum("X25519MLKEM768"))
	assert.True(t, IsPostQuantum("SecP384r1MLKEM1024"))
	assert.False(t, IsPostQuantum("secp384r1"))
	assert.False(t, IsPostQuantum("Error"))

	assert.Equal(t, "hybrid", KindHybrid.String())
}

func TestCurvePreferences(t *testing.T) {
	prefs, err := CurvePreferences([]string{"X25519MLKEM768", "x25519", "P-256"})
	require.NoError(t, err)
	assert.Equal(t, []tls.CurveID{tls.X25519MLKEM768, tls.X25519, tls.CurveP256}, prefs)

	prefs, err = CurvePreferences(nil)
	require.NoError(t, err)
	assert.Nil(t, prefs)

	_, err = CurvePreferences([]string{"X25519", "bogus"})
	assert.ErrorContains(t, err, "bogus")
}

func TestAll(t *testing.T) {
	all := All()
	require.Len(t, all, len(registry))
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}
	assert.Equal(t, Info{ID: 0x0017, Name: "secp256r1", Kind: "classical"}, all[0])
}
