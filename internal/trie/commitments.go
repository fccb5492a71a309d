package trie

import (
	"encoding/binary"
	"math/big"

	"github.com/category-labs/monad-go/monadtypes"
)

// The transaction/receipt/withdrawal commitment lists use a manual,
// nil-safe canonical encoding rather than a generic RLP pass over
// monadtypes.Transaction/Receipt: both carry optional *big.Int fee fields
// (legacy vs. dynamic-fee vs. blob transactions leave different subsets
// nil) that a reflection-based encoder not designed around this package's
// own optionality would choke on. This mirrors the reserve-balance
// contract's own "own encoding, not required to match an external wire
// format" precedent: only internal round-trip consistency of the
// resulting commitment matters here, not byte-for-byte compatibility with
// any other client's receipts/transactions trie.

func bigBytes(b *big.Int) []byte {
	if b == nil {
		return nil
	}
	return b.Bytes()
}

func u64Bytes(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func lenPrefixed(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, u64Bytes(uint64(len(p)))...)
		out = append(out, p...)
	}
	return out
}

func encodeTransactionForRoot(tx *monadtypes.Transaction) []byte {
	to := make([]byte, monadtypes.AddressLength)
	if tx.To != nil {
		to = tx.To.Bytes()
	}
	return lenPrefixed(
		[]byte{byte(tx.Type)},
		u64Bytes(tx.Nonce),
		u64Bytes(tx.GasLimit),
		bigBytes(tx.GasPrice),
		bigBytes(tx.GasFeeCap),
		bigBytes(tx.GasTipCap),
		to,
		bigBytes(tx.Value),
		tx.Data,
		tx.Sender.Bytes(),
	)
}

func encodeReceiptForRoot(r *monadtypes.Receipt) []byte {
	parts := [][]byte{
		{byte(r.Status)},
		u64Bytes(r.CumulativeGasUsed),
		u64Bytes(r.GasUsed),
		r.Bloom[:],
	}
	for _, log := range r.Logs {
		logParts := [][]byte{log.Address.Bytes()}
		for _, t := range log.Topics {
			logParts = append(logParts, t.Bytes())
		}
		logParts = append(logParts, log.Data)
		parts = append(parts, lenPrefixed(logParts...))
	}
	return lenPrefixed(parts...)
}

func encodeWithdrawalForRoot(w *monadtypes.Withdrawal) []byte {
	return lenPrefixed(
		u64Bytes(w.Index),
		u64Bytes(w.ValidatorIndex),
		w.Address.Bytes(),
		u64Bytes(w.AmountGwei),
	)
}
