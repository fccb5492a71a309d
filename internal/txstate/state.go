// Package txstate implements Transaction State (/§4.2): the
// per-transaction working set an executing transaction reads and writes
// against, forked lazily from Block State's committed view and merged back
// atomically once execution finishes. Every accessor that may need to read
// through to Block State returns an error so a Trie Store I/O failure can
// propagate as a fatal xerrors.IOError instead of panicking mid-execution.
package txstate

import (
	"github.com/holiman/uint256"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/category-labs/monad-go/internal/revision"
	"github.com/category-labs/monad-go/internal/xerrors"
	"github.com/category-labs/monad-go/monadtypes"
)

// State is one transaction's private view of the world: a delta layered on
// top of a Reader (the Block State as of block start), journaled so a CALL
// frame's effects can be discarded without unwinding the whole transaction.
type State struct {
	reader Reader
	rules  revision.Rules

	block uint64
	tx    uint64

	accounts map[monadtypes.Address]*accountEntry
	touched  []monadtypes.Address // first-touch order, for deterministic WriteSet/ReadSet iteration

	accessedAccounts mapset.Set[monadtypes.Address]
	accessedStorage  mapset.Set[monadtypes.StorageKey]

	codeBytes map[monadtypes.Word]monadtypes.Code
	codeOrder []monadtypes.Word

	logs   []*monadtypes.Log
	refund uint64

	journal []journalEntry
}

// New forks a Transaction State from reader for the transaction at
// (block, txIndex), resolved against rules.
func New(reader Reader, rules revision.Rules, block, txIndex uint64) *State {
	return &State{
		reader:           reader,
		rules:            rules,
		block:            block,
		tx:               txIndex,
		accounts:         make(map[monadtypes.Address]*accountEntry),
		accessedAccounts: mapset.NewThreadUnsafeSet[monadtypes.Address](),
		accessedStorage:  mapset.NewThreadUnsafeSet[monadtypes.StorageKey](),
		codeBytes:        make(map[monadtypes.Word]monadtypes.Code),
	}
}

// entry returns addr's accountEntry, creating and forking it from the
// reader on first touch. Only the first fork can fail (an I/O error from
// Block State's own memoized read-through to the Trie Store).
func (s *State) entry(addr monadtypes.Address) *accountEntry {
	e, ok := s.accounts[addr]
	if !ok {
		// entry is also called by journal revert handlers, which only ever
		// run after load() has already created the entry; a miss here
		// would be a logic error, not a recoverable I/O failure.
		panic("txstate: entry() called before load() for " + addr.String())
	}
	return e
}

func (s *State) load(addr monadtypes.Address) (*accountEntry, error) {
	if e, ok := s.accounts[addr]; ok {
		return e, nil
	}
	acct, existed, err := s.reader.ReadAccount(addr)
	if err != nil {
		return nil, xerrors.NewIOError("read_account", err)
	}
	e := newAccountEntry(acct, existed)
	s.accounts[addr] = e
	s.touched = append(s.touched, addr)
	return e, nil
}

// AccountExists reports whether addr has ever been observed to exist
// (touched-dead cleanup treats an empty-but-existing account differently
// from one that never existed).
func (s *State) AccountExists(addr monadtypes.Address) (bool, error) {
	e, err := s.load(addr)
	if err != nil {
		return false, err
	}
	return e.originalExists || e.createdThisTx, nil
}

func (s *State) GetBalance(addr monadtypes.Address) (*uint256.Int, error) {
	e, err := s.load(addr)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Set(e.current.Balance), nil
}

func (s *State) GetNonce(addr monadtypes.Address) (uint64, error) {
	e, err := s.load(addr)
	if err != nil {
		return 0, err
	}
	return e.current.Nonce, nil
}

func (s *State) GetCodeHash(addr monadtypes.Address) (monadtypes.Word, error) {
	e, err := s.load(addr)
	if err != nil {
		return monadtypes.Word{}, err
	}
	return e.current.CodeHash, nil
}

func (s *State) GetCode(addr monadtypes.Address) (monadtypes.Code, error) {
	e, err := s.load(addr)
	if err != nil {
		return nil, err
	}
	if e.codeSet {
		return e.code, nil
	}
	if e.current.CodeHash == monadtypes.EmptyCodeHash {
		return nil, nil
	}
	code, err := s.reader.ReadCode(e.current.CodeHash)
	if err != nil {
		return nil, xerrors.NewIOError("read_code", err)
	}
	e.code = code
	e.codeSet = true
	return code, nil
}

func (s *State) GetCodeSize(addr monadtypes.Address) (int, error) {
	code, err := s.GetCode(addr)
	if err != nil {
		return 0, err
	}
	return len(code), nil
}

// SetNonce assigns a new nonce, recording the prior value for PopReject.
func (s *State) SetNonce(addr monadtypes.Address, nonce uint64) error {
	e, err := s.load(addr)
	if err != nil {
		return err
	}
	prev := e.current.Nonce
	e.current.Nonce = nonce
	s.append(&nonceChange{addr: addr, prev: prev})
	return s.touch(addr)
}

// SetCode assigns new code to addr (CREATE/CREATE2/EIP-7702 delegation
// designator installation), publishing the bytes into the transaction's
// pending code-write set keyed by hash.
func (s *State) SetCode(addr monadtypes.Address, hash monadtypes.Word, code monadtypes.Code) error {
	e, err := s.load(addr)
	if err != nil {
		return err
	}
	s.append(&codeChange{addr: addr, prevHash: e.current.CodeHash, prevSet: e.codeSet, prevCode: e.code})
	e.current.CodeHash = hash
	e.code = code
	e.codeSet = true
	if _, ok := s.codeBytes[hash]; !ok {
		s.codeBytes[hash] = code
		s.codeOrder = append(s.codeOrder, hash)
	}
	return s.touch(addr)
}

// CreateContract bumps addr's incarnation and marks it created this
// transaction, so a same-tx SelfDestruct fully deletes rather than merely
// transfers balance (EIP-6780, gated by rules.IsCancun).
func (s *State) CreateContract(addr monadtypes.Address) error {
	e, err := s.load(addr)
	if err != nil {
		return err
	}
	prev := *e
	e.current.Incarnation = e.current.Incarnation.Next(s.block, s.tx)
	e.createdThisTx = true
	e.touched = true
	s.append(&createAccountChange{addr: addr, prev: prev})
	return nil
}

// AddBalance credits amount to addr's balance. Overflow past 2^256-1 is an
// invariant violation: Block State's pessimistic floor already rejects any
// transaction that could produce one before execution reaches this point.
func (s *State) AddBalance(addr monadtypes.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		if _, err := s.load(addr); err != nil {
			return err
		}
		return s.touch(addr)
	}
	e, err := s.load(addr)
	if err != nil {
		return err
	}
	prev := *e.current.Balance
	sum, overflow := new(uint256.Int).AddOverflow(e.current.Balance, amount)
	if overflow {
		return xerrors.NewInvariantViolation("balance overflow on add_to_balance")
	}
	s.append(&balanceChange{addr: addr, prev: prev})
	e.current.Balance = sum
	return s.touch(addr)
}

// SubBalance debits amount from addr's balance. Underflow is an invariant
// violation for the same reason as AddBalance's overflow.
func (s *State) SubBalance(addr monadtypes.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		if _, err := s.load(addr); err != nil {
			return err
		}
		return s.touch(addr)
	}
	e, err := s.load(addr)
	if err != nil {
		return err
	}
	if e.current.Balance.Lt(amount) {
		return xerrors.NewInvariantViolation("balance underflow on subtract_from_balance")
	}
	prev := *e.current.Balance
	diff := new(uint256.Int).Sub(e.current.Balance, amount)
	s.append(&balanceChange{addr: addr, prev: prev})
	e.current.Balance = diff
	return s.touch(addr)
}

func (s *State) touch(addr monadtypes.Address) error {
	e, err := s.load(addr)
	if err != nil {
		return err
	}
	if !e.touched {
		s.append(&touchedChange{addr: addr, prev: e.touched})
		e.touched = true
	}
	return nil
}

// GetStorage returns the current value of (addr, key) in this
// transaction's view: the per-tx overlay if written, else the value read
// through to Block State (and cached there for subsequent reads).
func (s *State) GetStorage(addr monadtypes.Address, key monadtypes.Word) (monadtypes.Word, error) {
	e, err := s.load(addr)
	if err != nil {
		return monadtypes.Word{}, err
	}
	if v, ok := e.getStorageOverlay(key); ok {
		return v, nil
	}
	v, err := s.reader.ReadStorage(addr, e.original.Incarnation, key)
	if err != nil {
		return monadtypes.Word{}, xerrors.NewIOError("read_storage", err)
	}
	e.observeTxOriginal(key, v)
	return v, nil
}

// SetStorage writes value to (addr, key) and returns the EIP-2200/3529
// status classifying the net effect for gas metering and refund
// accounting.
func (s *State) SetStorage(addr monadtypes.Address, key, value monadtypes.Word) (monadtypes.StorageStatus, error) {
	e, err := s.load(addr)
	if err != nil {
		return 0, err
	}
	current, existed := e.getStorageOverlay(key)
	if !existed {
		v, err := s.reader.ReadStorage(addr, e.original.Incarnation, key)
		if err != nil {
			return 0, xerrors.NewIOError("read_storage", err)
		}
		current = v
	}
	origin := e.observeTxOriginal(key, current)

	status := storageStatus(origin, current, value)

	s.append(&storageChange{key: monadtypes.StorageKey{Address: addr, Slot: key}, existed: existed, prev: current})
	e.setStorageOverlay(key, value)
	return status, nil
}

func storageStatus(origin, current, next monadtypes.Word) monadtypes.StorageStatus {
	if current == next {
		return monadtypes.StorageAssigned
	}
	if origin == current {
		switch {
		case origin.IsZero():
			return monadtypes.StorageAdded
		case next.IsZero():
			return monadtypes.StorageDeleted
		default:
			return monadtypes.StorageModified
		}
	}
	// current != origin: the slot was already dirtied earlier this
	// transaction.
	if origin.IsZero() {
		// dirtied from zero (added earlier this tx)
		if next.IsZero() {
			return monadtypes.StorageAddedDeleted
		}
		return monadtypes.StorageModified
	}
	if current.IsZero() {
		// dirtied to zero earlier this tx (deleted earlier)
		switch {
		case next == origin:
			return monadtypes.StorageDeletedRestored
		default:
			return monadtypes.StorageDeletedAdded
		}
	}
	// dirtied to a non-zero value earlier this tx
	switch {
	case next.IsZero():
		return monadtypes.StorageModifiedDeleted
	case next == origin:
		return monadtypes.StorageModifiedRestored
	default:
		return monadtypes.StorageModified
	}
}

func (s *State) GetTransientStorage(addr monadtypes.Address, key monadtypes.Word) (monadtypes.Word, error) {
	e, err := s.load(addr)
	if err != nil {
		return monadtypes.Word{}, err
	}
	return e.getTransient(key), nil
}

func (s *State) SetTransientStorage(addr monadtypes.Address, key, value monadtypes.Word) error {
	e, err := s.load(addr)
	if err != nil {
		return err
	}
	prev := e.getTransient(key)
	s.append(&transientChange{key: monadtypes.StorageKey{Address: addr, Slot: key}, prev: prev})
	e.setTransient(key, value)
	return nil
}

// AccessAccount marks addr warm (EIP-2929) and reports whether it was
// already warm before this call.
func (s *State) AccessAccount(addr monadtypes.Address) (wasWarm bool, err error) {
	if _, err := s.load(addr); err != nil {
		return false, err
	}
	if s.accessedAccounts.Contains(addr) {
		return true, nil
	}
	s.accessedAccounts.Add(addr)
	s.append(&accessAccountChange{addr: addr})
	return false, nil
}

// AccessStorage marks (addr, key) warm and reports whether it was already
// warm before this call.
func (s *State) AccessStorage(addr monadtypes.Address, key monadtypes.Word) (wasWarm bool, err error) {
	if _, err := s.load(addr); err != nil {
		return false, err
	}
	k := monadtypes.StorageKey{Address: addr, Slot: key}
	if s.accessedStorage.Contains(k) {
		return true, nil
	}
	s.accessedStorage.Add(k)
	s.append(&accessStorageChange{key: k})
	return false, nil
}

// SelfDestruct marks addr for deletion and moves its balance to
// beneficiary. Post-Cancun (EIP-6780) an account not created within this
// same transaction keeps its storage and code and only has its balance
// swept; applied is false only when addr has already self-destructed in
// this transaction, and is true even when the swept balance is zero.
func (s *State) SelfDestruct(addr, beneficiary monadtypes.Address) (applied bool, transferred *uint256.Int, err error) {
	e, err := s.load(addr)
	if err != nil {
		return false, nil, err
	}
	if _, err := s.load(beneficiary); err != nil {
		return false, nil, err
	}
	if e.selfDestructed {
		return false, new(uint256.Int), nil
	}

	bal := new(uint256.Int).Set(e.current.Balance)
	prevSelfDestructed := e.selfDestructed
	prevBalance := *e.current.Balance
	s.append(&selfDestructChange{addr: addr, prev: prevSelfDestructed, prevBalance: prevBalance})

	fullDelete := !s.rules.IsCancun || e.createdThisTx
	e.selfDestructed = fullDelete
	e.beneficiary = beneficiary

	if !bal.IsZero() && addr != beneficiary {
		if err := s.AddBalance(beneficiary, bal); err != nil {
			return false, nil, err
		}
	}
	e.current.Balance = new(uint256.Int)
	if err := s.touch(addr); err != nil {
		return false, nil, err
	}
	return true, bal, nil
}

func (s *State) AddLog(log *monadtypes.Log) {
	s.logs = append(s.logs, log)
	s.append(logChange{})
}

func (s *State) Logs() []*monadtypes.Log { return s.logs }

// AddRefund adjusts the gas-refund counter by delta, which may be negative
// (EIP-3529 clawback on re-dirtying a slot restored to its origin).
func (s *State) AddRefund(delta int64) {
	if delta >= 0 {
		s.refund += uint64(delta)
	} else {
		s.refund -= uint64(-delta)
	}
	s.append(&refundChange{delta: delta})
}

func (s *State) Refund() uint64 { return s.refund }
