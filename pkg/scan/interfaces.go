package scan

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Interface is a standard identified by its ERC165 interface id.
type Interface struct {
	Name string
	ID   [4]byte
}

// StandardInterfaces is the fixed probe table, in probe order.
var StandardInterfaces = []Interface{
	{Name: "ERC721", ID: interfaceID("0x80ac58cd")},
	{Name: "ERC1155", ID: interfaceID("0xd9b67a26")},
	{Name: "ERC20", ID: interfaceID("0x36372b07")},
	{Name: "ERC777", ID: interfaceID("0xe58e113c")},
	{Name: "ERC165", ID: interfaceID("0x01ffc9a7")},
}

// supportsInterface(bytes4)
var supportsInterfaceSelector = common.FromHex("0x01ffc9a7")

func interfaceID(s string) [4]byte {
	var id [4]byte
	copy(id[:], common.FromHex(s))
	return id
}

// supportsInterfaceCall ABI-encodes supportsInterface(id).
func supportsInterfaceCall(id [4]byte) []byte {
	data := make([]byte, 0, 4+32)
	data = append(data, supportsInterfaceSelector...)
	return append(data, common.RightPadBytes(id[:], 32)...)
}

// decodeBool reads an ABI-encoded bool. Anything that is not exactly true is false.
func decodeBool(out []byte) bool {
	if len(out) < 32 {
		return false
	}
	return new(big.Int).SetBytes(out[:32]).Cmp(big.NewInt(1)) == 0
}

// probeInterfaces asks addr about every standard interface. Reverts and call
// errors count as unsupported; contracts without a correct ERC165 may be under-reported.
func (s *Scanner) probeInterfaces(ctx context.Context, addr common.Address) []string {
	found := []string{}
	for _, iface := range StandardInterfaces {
		out, err := s.Client.Call(ctx, addr, supportsInterfaceCall(iface.ID))
		if err != nil {
			continue
		}
		if decodeBool(out) {
			found = append(found, iface.Name)
		}
	}
	return found
}
