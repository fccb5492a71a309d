package evmhost

import (
	"github.com/holiman/uint256"

	"github.com/category-labs/monad-go/monadtypes"
)

// nativeTransferContract is the address a synthetic native-transfer log is
// attributed to, since the event is not emitted by any contract's own
// code but synthesized by the host on plain value moves. Fixed at
// 0xeeee...eeee so indexers can distinguish it from any real contract's
// address.
var nativeTransferContract = monadtypes.Address{
	0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee,
	0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee,
}

// nativeTransferTopic is the standard ERC20-style Transfer(address,address,
// uint256) event signature hash, reused here so existing log indexers that
// already watch for Transfer events pick up native value moves for free
// (native transfer synthetic event).
var nativeTransferTopic = monadtypes.Word{
	0xdd, 0xf2, 0x52, 0xad, 0x1b, 0xe2, 0xc8, 0x9b,
	0x69, 0xc2, 0xb0, 0x68, 0xfc, 0x37, 0x8d, 0xaa,
	0x95, 0x2b, 0xa7, 0xf1, 0x63, 0xc4, 0xa1, 0x16,
	0x28, 0xf5, 0x5a, 0x4d, 0xf5, 0x23, 0xb3, 0xef,
}

func nativeTransferLog(from, to monadtypes.Address, value *uint256.Int) *monadtypes.Log {
	return &monadtypes.Log{
		Address: nativeTransferContract,
		Topics: []monadtypes.Word{
			nativeTransferTopic,
			monadtypes.BytesToWord(from.Bytes()),
			monadtypes.BytesToWord(to.Bytes()),
		},
		Data: monadtypes.WordFromUint256(value).Bytes(),
	}
}
