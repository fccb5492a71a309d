// Package blockstate implements Block State (/§4.1): the single
// committed view of account and storage values for one in-flight block,
// read-through memoized against the Trie Store at (block-1, parent block
// id) and mutated only by validated in-order merges from completed
// transactions.
package blockstate

import (
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/category-labs/monad-go/internal/txstate"
	"github.com/category-labs/monad-go/internal/xerrors"
	"github.com/category-labs/monad-go/monadtypes"
)

// Metrics is the subset of internal/metrics.Registry Block State reports
// to; defined locally so this package never depends on the metrics
// package's full surface.
type Metrics struct {
	MergeAttempts prometheus.Counter
	MergeFailures prometheus.Counter
}

func (m Metrics) incMergeAttempt() {
	if m.MergeAttempts != nil {
		m.MergeAttempts.Inc()
	}
}

func (m Metrics) incMergeFailure() {
	if m.MergeFailures != nil {
		m.MergeFailures.Inc()
	}
}

// State is Block State for one in-flight block.
type State struct {
	trie          TrieStore
	block         uint64
	parentBlockID monadtypes.Word
	metrics       Metrics

	mu sync.RWMutex

	// Delta maps: values written by merged transactions, consulted before
	// falling through to the Trie Store. A deletion (self-destructed /
	// touched-dead) is recorded in the deleted set, not in accounts.
	accounts map[monadtypes.Address]*monadtypes.Account
	deleted  map[monadtypes.Address]bool
	storage  map[monadtypes.StorageKey]monadtypes.Word
	code     map[monadtypes.Word]monadtypes.Code

	accountMemo *lru.Cache
	codeMemo    *fastcache.Cache
}

const (
	defaultAccountMemoSize = 1 << 16
	defaultCodeMemoBytes   = 64 << 20
)

// New constructs Block State for block, forking from the Trie Store's
// view as of parentBlockID.
func New(trie TrieStore, block uint64, parentBlockID monadtypes.Word, metrics Metrics) *State {
	accountMemo, err := lru.New(defaultAccountMemoSize)
	if err != nil {
		// Only returns an error for a non-positive size, which never
		// happens for the constant above.
		panic(err)
	}
	return &State{
		trie:          trie,
		block:         block,
		parentBlockID: parentBlockID,
		metrics:       metrics,
		accounts:      make(map[monadtypes.Address]*monadtypes.Account),
		deleted:       make(map[monadtypes.Address]bool),
		storage:       make(map[monadtypes.StorageKey]monadtypes.Word),
		code:          make(map[monadtypes.Word]monadtypes.Code),
		accountMemo:   accountMemo,
		codeMemo:      fastcache.New(defaultCodeMemoBytes),
	}
}

// ReadAccount satisfies txstate.Reader: consults the delta map, then the
// memoized read-through to the Trie Store.
func (s *State) ReadAccount(addr monadtypes.Address) (*monadtypes.Account, bool, error) {
	s.mu.RLock()
	if s.deleted[addr] {
		s.mu.RUnlock()
		return nil, false, nil
	}
	if a, ok := s.accounts[addr]; ok {
		s.mu.RUnlock()
		return a.Copy(), true, nil
	}
	s.mu.RUnlock()

	if v, ok := s.accountMemo.Get(addr); ok {
		cached := v.(*cachedAccount)
		return cached.account.Copy(), cached.existed, nil
	}

	a, existed, err := s.trie.ReadAccount(s.block, s.parentBlockID, addr)
	if err != nil {
		return nil, false, xerrors.NewIOError("read_account", err)
	}
	s.accountMemo.Add(addr, &cachedAccount{account: a, existed: existed})
	if !existed {
		return nil, false, nil
	}
	return a.Copy(), true, nil
}

type cachedAccount struct {
	account *monadtypes.Account
	existed bool
}

// ReadStorage satisfies txstate.Reader, returning zero for keys belonging
// to a newer incarnation than the store's.
func (s *State) ReadStorage(addr monadtypes.Address, incarnation monadtypes.Incarnation, key monadtypes.Word) (monadtypes.Word, error) {
	k := monadtypes.StorageKey{Address: addr, Slot: key}

	s.mu.RLock()
	if s.deleted[addr] {
		s.mu.RUnlock()
		return monadtypes.Word{}, nil
	}
	if v, ok := s.storage[k]; ok {
		s.mu.RUnlock()
		return v, nil
	}
	s.mu.RUnlock()

	v, err := s.trie.ReadStorage(s.block, s.parentBlockID, addr, incarnation, key)
	if err != nil {
		return monadtypes.Word{}, xerrors.NewIOError("read_storage", err)
	}
	return v, nil
}

// ReadCode satisfies txstate.Reader, memoized in a byte-oriented cache
// since code blobs are typically much larger than a cache line.
func (s *State) ReadCode(hash monadtypes.Word) (monadtypes.Code, error) {
	if hash == monadtypes.EmptyCodeHash {
		return nil, nil
	}
	s.mu.RLock()
	if c, ok := s.code[hash]; ok {
		s.mu.RUnlock()
		return c, nil
	}
	s.mu.RUnlock()

	if cached := s.codeMemo.Get(nil, hash[:]); cached != nil {
		return monadtypes.Code(cached), nil
	}

	code, err := s.trie.ReadCode(hash)
	if err != nil {
		return nil, xerrors.NewIOError("read_code", err)
	}
	s.codeMemo.Set(hash[:], code)
	return code, nil
}

var _ txstate.Reader = (*State)(nil)
