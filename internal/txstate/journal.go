package txstate

import (
	"github.com/holiman/uint256"

	"github.com/category-labs/monad-go/monadtypes"
)

// journalEntry is one reversible mutation recorded since the most recent
// Push(), implementing the nested call-frame snapshot management from
// : every balance/nonce/storage/selfdestruct mutation stacks on
// top of the version tip and can be undone by PopReject.
type journalEntry interface {
	revert(s *State)
}

func (s *State) append(e journalEntry) {
	s.journal = append(s.journal, e)
}

// Push begins a new nested call frame and returns an id that can later be
// passed to PopAccept or PopReject.
func (s *State) Push() int {
	return len(s.journal)
}

// PopAccept keeps every mutation recorded since id (a successful call
// return): the frame's effects remain stacked on the version tip.
func (s *State) PopAccept(id int) {
	// Entries before id may still be needed by an enclosing frame's own
	// PopReject, so the journal is never trimmed here.
	_ = id
}

// PopReject undoes every mutation recorded since id, in reverse order
// (a reverted call, or the whole transaction on execution failure).
func (s *State) PopReject(id int) {
	for i := len(s.journal) - 1; i >= id; i-- {
		s.journal[i].revert(s)
	}
	s.journal = s.journal[:id]
}

type balanceChange struct {
	addr monadtypes.Address
	prev uint256.Int
}

func (c *balanceChange) revert(s *State) {
	prev := c.prev
	s.entry(c.addr).current.Balance = &prev
}

type nonceChange struct {
	addr monadtypes.Address
	prev uint64
}

func (c *nonceChange) revert(s *State) {
	s.entry(c.addr).current.Nonce = c.prev
}

type storageChange struct {
	key     monadtypes.StorageKey
	existed bool
	prev    monadtypes.Word
}

func (c *storageChange) revert(s *State) {
	e := s.entry(c.key.Address)
	if c.existed {
		e.setStorageOverlay(c.key.Slot, c.prev)
	} else {
		e.storage = e.storage.Delete(storageKeyBytes(c.key.Slot))
	}
}

type transientChange struct {
	key  monadtypes.StorageKey
	prev monadtypes.Word
}

func (c *transientChange) revert(s *State) {
	s.entry(c.key.Address).setTransient(c.key.Slot, c.prev)
}

type touchedChange struct {
	addr monadtypes.Address
	prev bool
}

func (c *touchedChange) revert(s *State) { s.entry(c.addr).touched = c.prev }

type codeChange struct {
	addr     monadtypes.Address
	prevHash monadtypes.Word
	prevSet  bool
	prevCode monadtypes.Code
}

func (c *codeChange) revert(s *State) {
	e := s.entry(c.addr)
	e.current.CodeHash = c.prevHash
	e.codeSet = c.prevSet
	e.code = c.prevCode
}

type selfDestructChange struct {
	addr        monadtypes.Address
	prev        bool
	prevBalance uint256.Int
}

func (c *selfDestructChange) revert(s *State) {
	e := s.entry(c.addr)
	e.selfDestructed = c.prev
	prev := c.prevBalance
	e.current.Balance = &prev
}

type createAccountChange struct {
	addr monadtypes.Address
	prev accountEntry
}

func (c *createAccountChange) revert(s *State) {
	prev := c.prev
	s.accounts[c.addr] = &prev
}

type logChange struct{}

func (logChange) revert(s *State) {
	s.logs = s.logs[:len(s.logs)-1]
}

type refundChange struct {
	delta int64
}

func (c *refundChange) revert(s *State) {
	if c.delta >= 0 {
		s.refund -= uint64(c.delta)
	} else {
		s.refund += uint64(-c.delta)
	}
}

type accessAccountChange struct {
	addr monadtypes.Address
}

func (c *accessAccountChange) revert(s *State) {
	s.accessedAccounts.Remove(c.addr)
}

type accessStorageChange struct {
	key monadtypes.StorageKey
}

func (c *accessStorageChange) revert(s *State) {
	s.accessedStorage.Remove(c.key)
}
