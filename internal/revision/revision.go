// Package revision implements the revision trait / per-revision dispatch
// design note from : protocol-revision-dependent behavior is
// resolved once per transaction, not once per opcode, via a Rules value
// derived from a block's revision.
package revision

// Revision names a protocol version, Ethereum mainnet forks through the
// Monad-specific revisions.
type Revision uint16

const (
	Frontier Revision = iota
	Homestead
	TangerineWhistle
	SpuriousDragon
	Byzantium
	Constantinople
	Petersburg
	Istanbul
	MuirGlacier
	Berlin
	London
	ArrowGlacier
	GrayGlacier
	Paris
	Shanghai
	Cancun
	Prague

	MonadZero
	MonadOne
	MonadTwo
	MonadThree
	MonadFour
	MonadFive
	MonadSix
	MonadSeven
	MonadEight
	MonadNext
)

var names = map[Revision]string{
	Frontier: "frontier", Homestead: "homestead", TangerineWhistle: "tangerine-whistle",
	SpuriousDragon: "spurious-dragon", Byzantium: "byzantium", Constantinople: "constantinople",
	Petersburg: "petersburg", Istanbul: "istanbul", MuirGlacier: "muir-glacier",
	Berlin: "berlin", London: "london", ArrowGlacier: "arrow-glacier", GrayGlacier: "gray-glacier",
	Paris: "paris", Shanghai: "shanghai", Cancun: "cancun", Prague: "prague",
	MonadZero: "monad-zero", MonadOne: "monad-one", MonadTwo: "monad-two",
	MonadThree: "monad-three", MonadFour: "monad-four", MonadFive: "monad-five",
	MonadSix: "monad-six", MonadSeven: "monad-seven", MonadEight: "monad-eight",
	MonadNext: "monad-next",
}

func (r Revision) String() string {
	if n, ok := names[r]; ok {
		return n
	}
	return "unknown"
}

// AtLeast reports whether r is at or after o in activation order.
func (r Revision) AtLeast(o Revision) bool { return r >= o }

// Rules is the resolved, per-transaction feature-activation bundle derived
// from a Revision. Components consult Rules rather than comparing
// Revision constants directly, so that a new revision only needs to update
// RulesFor.
type Rules struct {
	Revision Revision

	IsSpuriousDragon bool // touched-dead cleanup (invariants)
	IsLondon         bool // EIP-1559 base fee
	IsBerlin         bool // EIP-2929 access lists
	IsShanghai       bool // withdrawals, EIP-3651 warm coinbase
	IsCancun         bool // transient storage, beacon root, selfdestruct-only-transfers
	IsPrague         bool // EIP-7702 set-code transactions

	// UseRecentCodeHashForSubject gates the EIP-7702 delegation /
	// subject-account interaction described in third Open
	// Question. Resolved MonadEight+ per the source's
	// use_recent_code_hash_ flag; see DESIGN.md.
	UseRecentCodeHashForSubject bool
}

// RulesFor derives the feature bundle active at revision r.
func RulesFor(r Revision) Rules {
	return Rules{
		Revision:         r,
		IsSpuriousDragon: r.AtLeast(SpuriousDragon),
		IsLondon:         r.AtLeast(London),
		IsBerlin:         r.AtLeast(Berlin),
		IsShanghai:       r.AtLeast(Shanghai),
		IsCancun:         r.AtLeast(Cancun),
		IsPrague:         r.AtLeast(Prague),

		UseRecentCodeHashForSubject: r.AtLeast(MonadEight),
	}
}
