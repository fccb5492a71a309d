package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/holiman/uint256"
	ethcommon "github.com/luxfi/geth/common"
	"github.com/luxfi/geth/crypto"

	"github.com/category-labs/monad-go/internal/blockstate"
	"github.com/category-labs/monad-go/monadtypes"
)

// genesisAccount is one entry of a genesis allocation file: balance and
// nonce plus optional code and storage, keyed by hex address in the file
// itself.
type genesisAccount struct {
	Balance string            `json:"balance"`
	Nonce   uint64            `json:"nonce"`
	Code    string            `json:"code"`
	Storage map[string]string `json:"storage"`
}

type genesisFile struct {
	ChainID uint64                     `json:"chainId"`
	Alloc   map[string]genesisAccount `json:"alloc"`
}

// loadGenesis reads a genesis allocation file and commits its accounts to
// store as block 0. Parsing and validating the broader genesis format
// (difficulty, gas limit, extra data, and the rest of a full chain-spec
// file) is an external collaborator's job; this only seeds the account
// state the Trie Store needs before the first ingested block can read it.
func loadGenesis(path string, store interface {
	Commit(blockstate.CommitUpdate) (monadtypes.Word, error)
}) (uint64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read genesis file: %w", err)
	}
	var g genesisFile
	if err := json.Unmarshal(raw, &g); err != nil {
		return 0, fmt.Errorf("parse genesis file: %w", err)
	}

	accounts := make(map[monadtypes.Address]*monadtypes.Account, len(g.Alloc))
	storage := make(map[monadtypes.StorageKey]monadtypes.Word)
	code := make(map[monadtypes.Word]monadtypes.Code)

	for hexAddr, ga := range g.Alloc {
		addr := monadtypes.AddressFromCommon(ethcommon.HexToAddress(hexAddr))

		balanceBig, ok := new(big.Int).SetString(trimHexPrefix(ga.Balance), 16)
		if !ok {
			return 0, fmt.Errorf("genesis account %s: invalid balance %q", hexAddr, ga.Balance)
		}
		balance, overflow := uint256.FromBig(balanceBig)
		if overflow {
			return 0, fmt.Errorf("genesis account %s: balance %q overflows uint256", hexAddr, ga.Balance)
		}

		acct := &monadtypes.Account{
			Balance:  balance,
			Nonce:    ga.Nonce,
			CodeHash: monadtypes.EmptyCodeHash,
		}

		if ga.Code != "" {
			codeBytes, err := hex.DecodeString(trimHexPrefix(ga.Code))
			if err != nil {
				return 0, fmt.Errorf("genesis account %s: invalid code: %w", hexAddr, err)
			}
			acct.CodeHash = monadtypes.WordFromCommon(crypto.Keccak256Hash(codeBytes))
			code[acct.CodeHash] = codeBytes
		}

		for slotHex, valueHex := range ga.Storage {
			slot := monadtypes.BytesToWord(ethcommon.HexToHash(slotHex).Bytes())
			value := monadtypes.BytesToWord(ethcommon.HexToHash(valueHex).Bytes())
			storage[monadtypes.StorageKey{Address: addr, Slot: slot}] = value
		}

		accounts[addr] = acct
	}

	if _, err := store.Commit(blockstate.CommitUpdate{
		Block:    0,
		Accounts: accounts,
		Storage:  storage,
		Code:     code,
	}); err != nil {
		return 0, fmt.Errorf("commit genesis: %w", err)
	}
	return g.ChainID, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
