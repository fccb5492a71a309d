package main

import "github.com/urfave/cli/v2"

var blockDBFlag = &cli.StringFlag{
	Name:     "block_db",
	Usage:    "path to the block file this run ingests",
	Required: true,
}

var dbFlag = &cli.StringFlag{
	Name:  "db",
	Usage: "comma-separated Trie Store directories; a fresh temporary directory if omitted (there is no in-memory store)",
}

var nblocksFlag = &cli.Uint64Flag{
	Name:  "nblocks",
	Usage: "stop after ingesting this many blocks (0 means no limit)",
}

var nthreadsFlag = &cli.UintFlag{
	Name:  "nthreads",
	Usage: "ring I/O worker thread count for the Trie Store",
	Value: 2,
}

var nfibersFlag = &cli.UintFlag{
	Name:  "nfibers",
	Usage: "fiber pool size the Parallel Executor schedules transactions onto",
	Value: 8,
}

var noCompactionFlag = &cli.BoolFlag{
	Name:  "no_compaction",
	Usage: "accepted for compatibility; has no effect (this Trie Store has no compaction)",
}

var sqThreadCPUFlag = &cli.IntFlag{
	Name:  "sq_thread_cpu",
	Usage: "accepted for compatibility; has no effect (this Trie Store has no pinnable submission-queue thread)",
	Value: -1,
}

var loadSnapshotFlag = &cli.StringFlag{
	Name:  "load_snapshot",
	Usage: "resume from a snapshot directory written by --dump_snapshot",
}

var dumpSnapshotFlag = &cli.StringFlag{
	Name:  "dump_snapshot",
	Usage: "write a resumable snapshot to this directory after the run finishes",
}

var genesisFileFlag = &cli.StringFlag{
	Name:  "genesis_file",
	Usage: "genesis allocation file; required only when --db points at a fresh directory",
}

var logLevelFlag = &cli.StringFlag{
	Name:  "log_level",
	Usage: "trace, debug, info, warning, error, or critical",
	Value: "info",
}

var chainIDFlag = &cli.Uint64Flag{
	Name:  "chain_id",
	Usage: "chain ID recorded in resumable snapshots",
	Value: 20143, // monadtypes.ChainIDDevnet
}

var configFlag = &cli.StringFlag{
	Name:  "config",
	Usage: "YAML/TOML/JSON file supplying defaults for any flag not given on the command line",
}

var runFlags = []cli.Flag{
	blockDBFlag,
	dbFlag,
	nblocksFlag,
	nthreadsFlag,
	nfibersFlag,
	noCompactionFlag,
	sqThreadCPUFlag,
	loadSnapshotFlag,
	dumpSnapshotFlag,
	genesisFileFlag,
	logLevelFlag,
	chainIDFlag,
	configFlag,
}
