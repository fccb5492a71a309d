// Package trie implements the Trie Store (A): a persistent, versioned
// Merkle-Patricia trie over accounts and per-account storage, with an
// append-only disk layout, asynchronous I/O, and lazy root computation.
package trie

import (
	"path/filepath"
	"sync"

	"github.com/holiman/uint256"

	"github.com/category-labs/monad-go/internal/blockstate"
	"github.com/category-labs/monad-go/internal/trie/pageio"
	"github.com/category-labs/monad-go/internal/xerrors"
	"github.com/category-labs/monad-go/monadtypes"
)

var _ blockstate.TrieStore = (*Store)(nil)

// Store serves Block State's narrow TrieStore interface plus the
// consensus-facing metadata operations (set_block_and_prefix/finalize/
// update_verified_block/update_voted_metadata/update_proposed_metadata).
//
// Scoping decision: this store tracks a single linear chain tip, not a
// multi-branch version history. Block State only ever reads the state as
// of the immediately preceding committed block, and branch selection among
// competing forks is a consensus concern this module doesn't implement;
// serving arbitrary historical (block_number, block_id) pairs would
// require retaining every superseded root indefinitely for no caller this
// module has. The directory still records one entry per committed block
// (root, aux roots, verified/voted/proposed flags) for introspection and
// for state_root()-style queries about the current tip.
type Store struct {
	mu sync.RWMutex

	nodes    *pageio.Store
	nodeRing *pageio.Ring
	nodesLog *nodeStore

	code     *pageio.Store
	codeRing *pageio.Ring
	codeLog  *nodeStore
	codeBlob map[monadtypes.Word]monadtypes.Code

	accounts *node // current tip's account trie root
	storage  map[monadtypes.Address]*node
	storageInc map[monadtypes.Address]monadtypes.Incarnation

	dir *directory

	block         uint64
	blockID       monadtypes.Word
	parentBlockID monadtypes.Word

	stateRoot        monadtypes.Word
	receiptsRoot     monadtypes.Word
	transactionsRoot monadtypes.Word
	withdrawalsRoot  monadtypes.Word
}

// Open opens (creating if necessary) a Trie Store rooted at baseDir, with
// ringWorkers goroutines servicing its I/O ring.
func Open(baseDir string, ringWorkers int) (*Store, error) {
	nodes, err := pageio.Open(filepath.Join(baseDir, "nodes.db"))
	if err != nil {
		return nil, xerrors.NewIOError("trie_open_nodes", err)
	}
	code, err := pageio.Open(filepath.Join(baseDir, "code.db"))
	if err != nil {
		return nil, xerrors.NewIOError("trie_open_code", err)
	}
	nodeRing := pageio.NewRing(ringWorkers)
	codeRing := pageio.NewRing(ringWorkers)
	return &Store{
		nodes:      nodes,
		nodeRing:   nodeRing,
		nodesLog:   newNodeStore(nodes, nodeRing, 64<<20),
		code:       code,
		codeRing:   codeRing,
		codeLog:    newNodeStore(code, codeRing, 64<<20),
		codeBlob:   make(map[monadtypes.Word]monadtypes.Code),
		storage:    make(map[monadtypes.Address]*node),
		storageInc: make(map[monadtypes.Address]monadtypes.Incarnation),
		dir:        newDirectory(),
	}, nil
}

func (s *Store) Close() error {
	s.nodeRing.Close()
	s.codeRing.Close()
	if err := s.nodes.Close(); err != nil {
		return err
	}
	return s.code.Close()
}

// ReadAccount implements blockstate.TrieStore.
func (s *Store) ReadAccount(block uint64, parentBlockID monadtypes.Word, addr monadtypes.Address) (*monadtypes.Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := keccak256(addr[:])
	b, found := get(s.accounts, keyToNibbles(key))
	if !found {
		return nil, false, nil
	}
	acct, _, err := decodeAccountLeaf(b)
	if err != nil {
		return nil, false, xerrors.NewIOError("trie_decode_account", err)
	}
	return acct, true, nil
}

// ReadStorage implements blockstate.TrieStore.
func (s *Store) ReadStorage(block uint64, parentBlockID monadtypes.Word, addr monadtypes.Address, incarnation monadtypes.Incarnation, key monadtypes.Word) (monadtypes.Word, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if inc, ok := s.storageInc[addr]; !ok || inc != incarnation {
		return monadtypes.Word{}, nil
	}
	root := s.storage[addr]
	k := keccak256(key[:])
	b, found := get(root, keyToNibbles(k))
	if !found {
		return monadtypes.Word{}, nil
	}
	return monadtypes.BytesToWord(b), nil
}

// ReadCode implements blockstate.TrieStore.
func (s *Store) ReadCode(hash monadtypes.Word) (monadtypes.Code, error) {
	if hash == monadtypes.EmptyCodeHash {
		return nil, nil
	}
	s.mu.RLock()
	c, ok := s.codeBlob[hash]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}
	b, found, err := s.codeLog.load(s.code, hash)
	if err != nil {
		return nil, xerrors.NewIOError("trie_read_code", err)
	}
	if !found {
		return nil, nil
	}
	return monadtypes.Code(b), nil
}

// Commit implements blockstate.TrieStore: it applies one block's account,
// storage, and code deltas, recomputes the dirty subset of the Merkle
// tries, persists every newly dirty node, and publishes a single atomic
// directory entry for the block — the "crash during write is tolerated"
// property named in  follows directly from that publish being
// the last step.
func (s *Store) Commit(update blockstate.CommitUpdate) (monadtypes.Word, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, code := range update.Code {
		hash := keccak256(code)
		s.codeBlob[hash] = code
		if err := s.codeLog.persist(hash, code); err != nil {
			return monadtypes.Word{}, xerrors.NewIOError("trie_persist_code", err)
		}
	}

	for key, value := range update.Storage {
		root := s.storage[key.Address]
		k := keccak256(key.Slot[:])
		var payload []byte
		if !value.IsZero() {
			payload = trimWord(value)
		}
		s.storage[key.Address] = put(root, keyToNibbles(k), payload)
	}

	var persistErr error
	persistNode := func(h monadtypes.Word, encoded []byte) {
		if persistErr == nil {
			persistErr = s.nodesLog.persist(h, encoded)
		}
	}

	for addr, acct := range update.Accounts {
		if acct == nil {
			s.accounts = put(s.accounts, keyToNibbles(keccak256(addr[:])), nil)
			delete(s.storage, addr)
			delete(s.storageInc, addr)
			continue
		}
		s.storageInc[addr] = acct.Incarnation
		storageRoot := hashNode(s.storage[addr], persistNode)
		if persistErr != nil {
			return monadtypes.Word{}, xerrors.NewIOError("trie_persist_storage_node", persistErr)
		}
		encoded, err := encodeAccountLeaf(acct, storageRoot)
		if err != nil {
			return monadtypes.Word{}, xerrors.NewIOError("trie_encode_account", err)
		}
		s.accounts = put(s.accounts, keyToNibbles(keccak256(addr[:])), encoded)
	}

	s.stateRoot = hashNode(s.accounts, persistNode)
	if persistErr != nil {
		return monadtypes.Word{}, xerrors.NewIOError("trie_persist_account_node", persistErr)
	}

	s.receiptsRoot = rootOfList(encodeAll(update.Receipts, encodeReceiptForRoot))
	s.transactionsRoot = rootOfList(encodeAll(update.Transactions, encodeTransactionForRoot))
	s.withdrawalsRoot = rootOfList(encodeAll(update.Withdrawals, encodeWithdrawalForRoot))

	s.block = update.Block
	s.parentBlockID = update.ParentBlockID
	s.dir.publish(dirEntry{
		Block:            update.Block,
		BlockID:          s.blockID,
		StateRoot:        s.stateRoot,
		ReceiptsRoot:     s.receiptsRoot,
		TransactionsRoot: s.transactionsRoot,
		WithdrawalsRoot:  s.withdrawalsRoot,
	})
	return s.stateRoot, nil
}

// SetBlockAndPrefix pins the block number / block id the next Commit will
// be recorded under. Nothing in this module calls it outside tests.
func (s *Store) SetBlockAndPrefix(block uint64, blockID monadtypes.Word) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block = block
	s.blockID = blockID
}

// Finalize marks block's directory entry as the finalized tip.
func (s *Store) Finalize(block uint64, blockID monadtypes.Word) error {
	s.dir.update(block, func(e *dirEntry) { e.BlockID = blockID; e.Verified = true })
	return nil
}

func (s *Store) UpdateVerifiedBlock(block uint64) error {
	s.dir.update(block, func(e *dirEntry) { e.Verified = true })
	return nil
}

func (s *Store) UpdateVotedMetadata(block uint64, blockID monadtypes.Word) error {
	s.dir.update(block, func(e *dirEntry) { e.BlockID = blockID; e.Voted = true })
	return nil
}

func (s *Store) UpdateProposedMetadata(block uint64, blockID monadtypes.Word) error {
	s.dir.update(block, func(e *dirEntry) { e.BlockID = blockID; e.Proposed = true })
	return nil
}

func (s *Store) StateRoot() monadtypes.Word {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateRoot
}

func (s *Store) ReceiptsRoot() monadtypes.Word {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.receiptsRoot
}

func (s *Store) TransactionsRoot() monadtypes.Word {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactionsRoot
}

func (s *Store) WithdrawalsRoot() monadtypes.Word {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.withdrawalsRoot
}

func trimWord(w monadtypes.Word) []byte {
	u := w.ToUint256()
	return u.Bytes()
}

// encodeAll applies encode to each item independently; used to build the
// transaction/receipt/withdrawal commitment lists.
func encodeAll[T any](items []T, encode func(T) []byte) [][]byte {
	out := make([][]byte, len(items))
	for i, item := range items {
		out[i] = encode(item)
	}
	return out
}

// rootOfList commits an ordered list of already-encoded items into an
// ephemeral (unpersisted) trie keyed by keccak256(index) and returns its
// root hash — the same Merkle commitment shape used for accounts, reused
// here for receipts/transactions/withdrawals since the module does not
// otherwise specify their trie layout.
func rootOfList(items [][]byte) monadtypes.Word {
	var root *node
	for i, item := range items {
		key := keccak256(indexBytes(uint64(i)))
		root = put(root, keyToNibbles(key), item)
	}
	return hashNode(root, nil)
}

func indexBytes(i uint64) []byte {
	u := new(uint256.Int).SetUint64(i)
	return u.Bytes()
}
