package txstate

import (
	"github.com/holiman/uint256"

	"github.com/category-labs/monad-go/monadtypes"
)

// The methods in this file expose the per-account reserve-balance cache
// fields ("Per-account cached fields") to internal/reserve,
// which owns the reserve-floor bookkeeping itself; Transaction State only
// stores the cache alongside the rest of an account's per-transaction
// snapshot so it survives PopReject the same way every other field does.

// OriginalBalance returns the balance Block State reported for addr
// before this transaction touched it.
func (s *State) OriginalBalance(addr monadtypes.Address) (*uint256.Int, error) {
	e, err := s.load(addr)
	if err != nil {
		return nil, err
	}
	return e.original.Balance, nil
}

// OriginalCodeHash returns the code hash Block State reported for addr
// before this transaction touched it.
func (s *State) OriginalCodeHash(addr monadtypes.Address) (monadtypes.Word, error) {
	e, err := s.load(addr)
	if err != nil {
		return monadtypes.Word{}, err
	}
	return e.original.CodeHash, nil
}

// RBThresholdCached reports whether addr's violation threshold has
// already been computed this transaction.
func (s *State) RBThresholdCached(addr monadtypes.Address) (bool, error) {
	e, err := s.load(addr)
	if err != nil {
		return false, err
	}
	return e.rbViolationThreshold != nil, nil
}

func (s *State) RBThreshold(addr monadtypes.Address) (*uint256.Int, error) {
	e, err := s.load(addr)
	if err != nil {
		return nil, err
	}
	if e.rbViolationThreshold == nil {
		return new(uint256.Int), nil
	}
	return e.rbViolationThreshold, nil
}

func (s *State) SetRBThreshold(addr monadtypes.Address, v *uint256.Int) error {
	e, err := s.load(addr)
	if err != nil {
		return err
	}
	e.rbViolationThreshold = v
	return nil
}

func (s *State) ClearRBThreshold(addr monadtypes.Address) error {
	e, err := s.load(addr)
	if err != nil {
		return err
	}
	e.rbViolationThreshold = nil
	return nil
}

func (s *State) RBFailed(addr monadtypes.Address) (bool, error) {
	e, err := s.load(addr)
	if err != nil {
		return false, err
	}
	return e.rbFailed, nil
}

func (s *State) SetRBFailed(addr monadtypes.Address, failed bool) error {
	e, err := s.load(addr)
	if err != nil {
		return err
	}
	e.rbFailed = failed
	return nil
}

// CodeByHash resolves arbitrary code by hash, consulting this
// transaction's own not-yet-merged code writes before falling through to
// Block State. Used by internal/reserve to inspect a subject account's
// code for an EIP-7702 delegation designator without going through the
// addr-keyed GetCode accessor.
func (s *State) CodeByHash(hash monadtypes.Word) (monadtypes.Code, error) {
	if hash == monadtypes.EmptyCodeHash {
		return nil, nil
	}
	if c, ok := s.codeBytes[hash]; ok {
		return c, nil
	}
	return s.reader.ReadCode(hash)
}
