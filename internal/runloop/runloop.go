package runloop

import (
	"context"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/category-labs/monad-go/internal/blockstate"
	"github.com/category-labs/monad-go/internal/executor"
	"github.com/category-labs/monad-go/internal/metrics"
	"github.com/category-labs/monad-go/internal/revision"
	"github.com/category-labs/monad-go/log"
	"github.com/category-labs/monad-go/monadtypes"
)

// slowCommitThreshold is the default per-block wall-clock warning
// threshold: a block whose execute+commit exceeds this logs a warning
// and bumps a counter, pairing a metric with a structured log line for
// anything operators should notice without grepping.
const slowCommitThreshold = 500 * time.Millisecond

// Config wires one Loop instance.
type Config struct {
	TrieStore blockstate.TrieStore
	Rules     revision.Rules

	Runner executor.Runner
	System executor.SystemCaller

	Executor executor.Config

	GetMaxReserve executor.MaxReserveFunc

	Metrics *metrics.Registry

	// SlowCommitThreshold overrides the 500ms default warning threshold;
	// zero keeps the default.
	SlowCommitThreshold time.Duration
}

func (c Config) slowCommitThreshold() time.Duration {
	if c.SlowCommitThreshold <= 0 {
		return slowCommitThreshold
	}
	return c.SlowCommitThreshold
}

// Loop ingests blocks one at a time from a Source, executes them, commits
// the result to the Trie Store, and tracks the rolling sender/authority
// history the Reserve-Balance Tracker's sender-can-dip predicate needs.
type Loop struct {
	cfg Config
	ex  *executor.Executor

	parentBlockID monadtypes.Word
	lastBlock     uint64

	// parentHistory/grandparentHistory are the two most recent blocks'
	// sender+authority sets, shifted forward one block at a time.
	parentHistory      mapset.Set[monadtypes.Address]
	grandparentHistory mapset.Set[monadtypes.Address]

	stop atomic.Bool
}

// New constructs a Loop starting from genesisBlockID, the block ID the
// very first ingested block's parent state should be read at.
func New(cfg Config, genesisBlockID monadtypes.Word) *Loop {
	var execMetrics executor.Metrics
	if cfg.Metrics != nil {
		execMetrics = executor.Metrics{
			RetryCount:          cfg.Metrics.RetryCount,
			CircuitBreakerTrips: cfg.Metrics.CircuitBreakerTrips,
		}
	}
	return &Loop{
		cfg:                cfg,
		ex:                 executor.New(cfg.Runner, cfg.System, cfg.Rules, cfg.Executor, execMetrics),
		parentBlockID:      genesisBlockID,
		parentHistory:      mapset.NewThreadUnsafeSet[monadtypes.Address](),
		grandparentHistory: mapset.NewThreadUnsafeSet[monadtypes.Address](),
	}
}

// NewFromSnapshot constructs a Loop resuming from a previously dumped
// Manifest, restoring the parent/grandparent sender history the reserve
// tracker needs instead of starting it cold.
func NewFromSnapshot(cfg Config, manifest Manifest) *Loop {
	l := New(cfg, manifest.LastBlockID)
	l.lastBlock = manifest.LastBlock
	l.parentHistory, l.grandparentHistory = ResumeHistory(manifest)
	return l
}

// Manifest captures the loop's resumable state for a snapshot dump taken
// between blocks.
func (l *Loop) Manifest(chainID uint64) Manifest {
	return Manifest{
		ChainID:            chainID,
		LastBlock:          l.lastBlock,
		LastBlockID:        l.parentBlockID,
		ParentHistory:      l.parentHistory.ToSlice(),
		GrandparentHistory: l.grandparentHistory.ToSlice(),
	}
}

// Stop requests the loop exit before its next block; safe to call from a
// signal handler goroutine. A loop already blocked inside one block's
// execution still finishes that block before observing the flag.
func (l *Loop) Stop() { l.stop.Store(true) }

// Run ingests and executes blocks from source until it is exhausted, ctx
// is cancelled, or Stop is called between blocks.
func (l *Loop) Run(ctx context.Context, source Source) error {
	for {
		if l.stop.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		block, ok, err := source.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		if err := l.runBlock(ctx, block); err != nil {
			return err
		}
	}
}

func (l *Loop) runBlock(ctx context.Context, block *Block) error {
	start := time.Now()

	var blockMetrics blockstate.Metrics
	if l.cfg.Metrics != nil {
		blockMetrics = blockstate.Metrics{
			MergeAttempts: l.cfg.Metrics.MergeAttempts,
			MergeFailures: l.cfg.Metrics.MergeFailures,
		}
	}
	state := blockstate.New(l.cfg.TrieStore, block.Header.Number, l.parentBlockID, blockMetrics)

	history := executor.ReserveHistory{
		Grandparent: l.grandparentHistory,
		Parent:      l.parentHistory,
	}

	receipts, err := l.ex.RunBlock(ctx, state, block.Header, block.Transactions, block.Withdrawals, history, l.cfg.GetMaxReserve)
	if err != nil {
		return err
	}

	senders := make([]monadtypes.Address, len(block.Transactions))
	thisBlockHistory := mapset.NewThreadUnsafeSet[monadtypes.Address]()
	for i, tx := range block.Transactions {
		senders[i] = tx.Sender
		thisBlockHistory.Add(tx.Sender)
		for _, a := range tx.Authorizations {
			thisBlockHistory.Add(a.Authority)
		}
	}

	if _, err := state.Commit(block.Header, receipts, senders, block.Transactions, block.Withdrawals); err != nil {
		return err
	}

	l.parentBlockID = block.ID
	l.lastBlock = block.Header.Number
	l.grandparentHistory = l.parentHistory
	l.parentHistory = thisBlockHistory

	elapsed := time.Since(start)
	if l.cfg.Metrics != nil {
		l.cfg.Metrics.BlockCommitSeconds.Observe(elapsed.Seconds())
	}
	if elapsed > l.cfg.slowCommitThreshold() {
		if l.cfg.Metrics != nil {
			l.cfg.Metrics.SlowBlockWarnings.Inc()
		}
		log.Warn("slow block commit", "block", block.Header.Number, "elapsed", elapsed)
	}
	return nil
}
