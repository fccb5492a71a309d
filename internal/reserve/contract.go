// Package reserve implements the Reserve-Balance Tracker (): the
// pessimistic reserve-floor invariant enforced across the current,
// parent, and grandparent blocks, and the system contract that lets a
// subject account reconfigure its reserve with a two-block settlement
// delay.
package reserve

import (
	"github.com/holiman/uint256"

	"github.com/category-labs/monad-go/monadtypes"
)

// ContractAddress is the fixed system address the reserve-balance
// contract lives at.
var ContractAddress = monadtypes.BytesToAddress([]byte{0x09, 0x00})

// UpdateSelector is the 4-byte selector for update(uint256).
const UpdateSelector uint32 = 0x82ab890a

// DelayBlocks is the settlement delay: a pending update becomes settled
// once the current block is at least this many blocks past the block the
// update was submitted in.
const DelayBlocks = 2

// WeiPerMON is 10^18, the conversion factor used by DefaultReserveBalance.
var WeiPerMON = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18))

// DefaultReserveBalanceMON is the default max-reserve constant for
// revisions with no dedicated precompile override (10 MON).
const DefaultReserveBalanceMON = 10

// DefaultReserveBalance is DefaultReserveBalanceMON expressed in wei.
func DefaultReserveBalance() *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(DefaultReserveBalanceMON), WeiPerMON)
}

// ReserveBalanceChangedTopic is the event signature hash for
// ReserveBalanceChanged(address,uint256,uint256).
var ReserveBalanceChangedTopic = monadtypes.Word{
	0xec, 0xbe, 0xad, 0x9d, 0x90, 0x2a, 0xef, 0x69,
	0x00, 0xed, 0xfc, 0xf4, 0xe3, 0xec, 0x20, 0x5b,
	0x52, 0xf4, 0xf5, 0x98, 0x66, 0xd0, 0x86, 0xbb,
	0xf0, 0xd6, 0x38, 0x8f, 0xc9, 0xb3, 0x0d, 0x97,
}

// storageSelector is the low byte of a reserve-balance storage key,
// choosing which of the three per-address slots is addressed.
type storageSelector byte

const (
	slotFlags   storageSelector = 0x00
	slotSettled storageSelector = 0x01
	slotPending storageSelector = 0x02
)

func storageKey(addr monadtypes.Address, sel storageSelector) monadtypes.Word {
	var k monadtypes.Word
	copy(k[:monadtypes.AddressLength], addr[:])
	k[monadtypes.AddressLength] = byte(sel)
	return k
}

const (
	pendingMask     uint64 = 0x01
	initializedMask uint64 = 0x02
)

// accountState is the decoded per-address reserve-balance record.
type accountState struct {
	pendingValue *uint256.Int // nil means no pending update
	settledValue *uint256.Int
	pendingBlock uint64
	settledBlock uint64
}

func packFlags(flags monadtypes.Word) (pendingSet bool, pendingBlock, settledBlock uint64) {
	v := flags.ToUint256()
	flagBits := v.Uint64()
	pendingSet = flagBits&pendingMask != 0
	pendingBlock = new(uint256.Int).Rsh(v, 64).Uint64()
	settledBlock = new(uint256.Int).Rsh(v, 128).Uint64()
	return
}

func unpackFlags(pendingSet bool, pendingBlock, settledBlock uint64) monadtypes.Word {
	flagBits := initializedMask
	if pendingSet {
		flagBits |= pendingMask
	}
	v := new(uint256.Int).SetUint64(flagBits)
	v.Or(v, new(uint256.Int).Lsh(new(uint256.Int).SetUint64(pendingBlock), 64))
	v.Or(v, new(uint256.Int).Lsh(new(uint256.Int).SetUint64(settledBlock), 128))
	return monadtypes.WordFromUint256(v)
}

// ContractState is the narrow txstate surface the reserve-balance
// contract needs: raw storage access plus log emission, scoped to the
// current transaction.
type ContractState interface {
	GetStorage(addr monadtypes.Address, key monadtypes.Word) (monadtypes.Word, error)
	SetStorage(addr monadtypes.Address, key, value monadtypes.Word) (monadtypes.StorageStatus, error)
	AddLog(log *monadtypes.Log)
}

func loadAccountState(cs ContractState, addr monadtypes.Address) (accountState, error) {
	flags, err := cs.GetStorage(ContractAddress, storageKey(addr, slotFlags))
	if err != nil {
		return accountState{}, err
	}
	if flags.IsZero() {
		return accountState{
			pendingValue: nil,
			settledValue: DefaultReserveBalance(),
		}, nil
	}
	pendingSet, pendingBlock, settledBlock := packFlags(flags)

	settledWord, err := cs.GetStorage(ContractAddress, storageKey(addr, slotSettled))
	if err != nil {
		return accountState{}, err
	}
	st := accountState{
		settledValue: settledWord.ToUint256(),
		pendingBlock: pendingBlock,
		settledBlock: settledBlock,
	}
	if pendingSet {
		pendingWord, err := cs.GetStorage(ContractAddress, storageKey(addr, slotPending))
		if err != nil {
			return accountState{}, err
		}
		st.pendingValue = pendingWord.ToUint256()
	}
	return st, nil
}

func storeAccountState(cs ContractState, addr monadtypes.Address, st accountState) error {
	flags := unpackFlags(st.pendingValue != nil, st.pendingBlock, st.settledBlock)
	if _, err := cs.SetStorage(ContractAddress, storageKey(addr, slotFlags), flags); err != nil {
		return err
	}
	if _, err := cs.SetStorage(ContractAddress, storageKey(addr, slotSettled), monadtypes.WordFromUint256(st.settledValue)); err != nil {
		return err
	}
	pending := monadtypes.Word{}
	if st.pendingValue != nil {
		pending = monadtypes.WordFromUint256(st.pendingValue)
	}
	if _, err := cs.SetStorage(ContractAddress, storageKey(addr, slotPending), pending); err != nil {
		return err
	}
	return nil
}

// ErrPendingUpdate is returned by Update when a pending update already
// exists and the settlement delay has not yet elapsed.
type ErrPendingUpdate struct{}

func (ErrPendingUpdate) Error() string { return "reserve-balance: pending update already exists" }

// Update implements the contract's update(uint256) selector: lazily
// promotes a pending value to settled if the delay has elapsed, rejects
// if a pending update is still outstanding, then stores newValue as the
// new pending value. Returns the settled value as it stood before this
// call (the contract's own return value) and emits
// ReserveBalanceChanged.
func Update(cs ContractState, block uint64, sender monadtypes.Address, newValue *uint256.Int) (*uint256.Int, error) {
	st, err := loadAccountState(cs, sender)
	if err != nil {
		return nil, err
	}
	oldSettled := new(uint256.Int).Set(st.settledValue)

	if st.pendingValue != nil && st.pendingBlock+DelayBlocks <= block {
		st.settledValue = st.pendingValue
		st.settledBlock = st.pendingBlock
		st.pendingValue = nil
		st.pendingBlock = 0
	}

	if st.pendingValue != nil {
		return nil, ErrPendingUpdate{}
	}

	if newValue.IsZero() {
		newValue = DefaultReserveBalance()
	}
	st.pendingValue = new(uint256.Int).Set(newValue)
	st.pendingBlock = block

	if err := storeAccountState(cs, sender, st); err != nil {
		return nil, err
	}

	emitReserveBalanceChanged(cs, sender, oldSettled, newValue)
	return oldSettled, nil
}

// GetDelayed implements the contract's view.get_delayed(addr): the
// pending value if it was submitted at least DelayBlocks blocks ago,
// else the settled value.
func GetDelayed(cs ContractState, block uint64, addr monadtypes.Address) (*uint256.Int, error) {
	st, err := loadAccountState(cs, addr)
	if err != nil {
		return nil, err
	}
	if st.pendingValue != nil && block >= st.pendingBlock+DelayBlocks {
		return st.pendingValue, nil
	}
	return st.settledValue, nil
}

func emitReserveBalanceChanged(cs ContractState, sender monadtypes.Address, oldValue, newValue *uint256.Int) {
	cs.AddLog(&monadtypes.Log{
		Address: ContractAddress,
		Topics: []monadtypes.Word{
			ReserveBalanceChangedTopic,
			monadtypes.BytesToWord(sender.Bytes()),
		},
		Data: append(monadtypes.WordFromUint256(oldValue).Bytes(), monadtypes.WordFromUint256(newValue).Bytes()...),
	})
}

// IsReconfiguringTransaction reports whether tx targets the
// reserve-balance contract's update selector with zero value — spec
// §4.4's "reconfiguring transaction", which is subject to special
// validation.
func IsReconfiguringTransaction(to *monadtypes.Address, value *uint256.Int, data []byte) bool {
	if to == nil || *to != ContractAddress {
		return false
	}
	if value != nil && !value.IsZero() {
		return false
	}
	if len(data) < 4 {
		return false
	}
	selector := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
	return selector == UpdateSelector
}
