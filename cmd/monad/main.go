// monad is the execution core's standalone ingestion binary: it reads a
// block file, runs each block through the Parallel Executor against a
// Trie Store, and commits the result, optionally resuming from or
// writing a snapshot.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/category-labs/monad-go/internal/evmhost"
	"github.com/category-labs/monad-go/internal/executor"
	"github.com/category-labs/monad-go/internal/metrics"
	"github.com/category-labs/monad-go/internal/revision"
	"github.com/category-labs/monad-go/internal/runloop"
	"github.com/category-labs/monad-go/internal/trie"
	"github.com/category-labs/monad-go/log"
	"github.com/category-labs/monad-go/monadtypes"
)

const clientIdentifier = "monad"

var app = &cli.App{
	Name:    clientIdentifier,
	Usage:   "deterministic parallel execution core",
	Version: "0.1.0",
	Flags:   runFlags,
	Action:  run,
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	if err := applyConfigFile(ctx); err != nil {
		return err
	}

	if _, err := log.LvlFromString(ctx.String(logLevelFlag.Name)); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandler(os.Stderr, true)))

	storeDir, err := storeDirFromFlag(ctx.String(dbFlag.Name))
	if err != nil {
		return err
	}

	var manifest runloop.Manifest
	resuming := false
	if snapshotDir := ctx.String(loadSnapshotFlag.Name); snapshotDir != "" {
		manifest, err = runloop.LoadSnapshot(snapshotDir, storeDir)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		resuming = true
	}

	store, err := trie.Open(storeDir, int(ctx.Uint(nthreadsFlag.Name)))
	if err != nil {
		return fmt.Errorf("open trie store: %w", err)
	}
	defer store.Close()

	chainID := ctx.Uint64(chainIDFlag.Name)
	if genesisPath := ctx.String(genesisFileFlag.Name); genesisPath != "" {
		gid, err := loadGenesis(genesisPath, store)
		if err != nil {
			return err
		}
		if gid != 0 {
			chainID = gid
		}
	}

	rules := revision.RulesFor(revision.MonadEight)
	reg := metrics.New()

	runner := evmhost.NewRunner(valueTransferInterpreter{}, nil, nil, evmhost.Config{
		LogNativeTransfers: true,
	})

	loopCfg := runloop.Config{
		TrieStore: store,
		Rules:     rules,
		Runner:    runner,
		System:    runner,
		Executor: executor.Config{
			FiberCount: int(ctx.Uint(nfibersFlag.Name)),
		},
		Metrics: reg,
	}

	var loop *runloop.Loop
	if resuming {
		loop = runloop.NewFromSnapshot(loopCfg, manifest)
	} else {
		loop = runloop.New(loopCfg, monadtypes.Word{})
	}

	source, err := openFileSource(ctx.String(blockDBFlag.Name), ctx.Uint64(nblocksFlag.Name))
	if err != nil {
		return err
	}
	defer source.Close()

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-runCtx.Done()
		loop.Stop()
	}()

	if err := loop.Run(runCtx, source); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	if dumpDir := ctx.String(dumpSnapshotFlag.Name); dumpDir != "" {
		manifest := loop.Manifest(chainID)
		if err := runloop.DumpSnapshot(storeDir, dumpDir, manifest); err != nil {
			return fmt.Errorf("dump snapshot: %w", err)
		}
	}

	return nil
}

// storeDirFromFlag resolves --db's comma-list to the single directory this
// store implementation opens; multiple entries or an empty value both
// resolve to one path since in-memory operation isn't something the
// append-only Trie Store backend supports.
func storeDirFromFlag(db string) (string, error) {
	if db == "" {
		return os.MkdirTemp("", "monad-store-")
	}
	parts := strings.Split(db, ",")
	return parts[0], nil
}
