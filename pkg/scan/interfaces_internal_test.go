package scan

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestSupportsInterfaceCallEncoding(t *testing.T) {
	data := supportsInterfaceCall(interfaceID("0x80ac58cd"))
	assert.Equal(t,
		"01ffc9a780ac58cd00000000000000000000000000000000000000000000000000000000",
		common.Bytes2Hex(data))
}

func TestDecodeBool(t *testing.T) {
	word := func(b byte) []byte {
		out := make([]byte, 32)
		out[31] = b
		return out
	}
	assert.True(t, decodeBool(word(1)))
	assert.False(t, decodeBool(word(0)))
	assert.False(t, decodeBool(word(2)))
	assert.False(t, decodeBool(nil))
	assert.False(t, decodeBool([]byte{1}))
}

func TestWindowStartClampsAtGenesis(t *testing.T) {
	assert.Equal(t, uint64(0), windowStart(100, 1000))
	assert.Equal(t, uint64(0), windowStart(1000, 1000))
	assert.Equal(t, uint64(900), windowStart(1000, 100))
}
