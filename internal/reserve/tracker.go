package reserve

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/uint256"

	"github.com/category-labs/monad-go/internal/revision"
	"github.com/category-labs/monad-go/internal/txstate"
	"github.com/category-labs/monad-go/monadtypes"
)

// delegationPrefix is the fixed 3-byte magic (EIP-7702) identifying a
// delegation designator: code of the form 0xef0100 ++ address.
var delegationPrefix = [3]byte{0xef, 0x01, 0x00}

// IsDelegated reports whether code is an EIP-7702 delegation designator.
func IsDelegated(code monadtypes.Code) bool {
	return len(code) == 23 && code[0] == delegationPrefix[0] && code[1] == delegationPrefix[1] && code[2] == delegationPrefix[2]
}

// AccountView is the subset of txstate.State the tracker needs beyond
// ContractState: balance/code lookups plus the per-account reserve cache.
type AccountView interface {
	ContractState
	GetBalance(addr monadtypes.Address) (*uint256.Int, error)
	GetCodeHash(addr monadtypes.Address) (monadtypes.Word, error)
	OriginalBalance(addr monadtypes.Address) (*uint256.Int, error)
	OriginalCodeHash(addr monadtypes.Address) (monadtypes.Word, error)
	CodeByHash(hash monadtypes.Word) (monadtypes.Code, error)

	RBThresholdCached(addr monadtypes.Address) (bool, error)
	RBThreshold(addr monadtypes.Address) (*uint256.Int, error)
	SetRBThreshold(addr monadtypes.Address, v *uint256.Int) error
	ClearRBThreshold(addr monadtypes.Address) error
	RBFailed(addr monadtypes.Address) (bool, error)
	SetRBFailed(addr monadtypes.Address, failed bool) error
}

var _ AccountView = (*txstate.State)(nil)

// BlockContext is the cross-block sender/authority history the
// sender-can-dip predicate consults ("not involved as
// sender/authority in the grandparent, parent, or earlier-in-block
// transactions").
type BlockContext struct {
	GrandparentSendersAndAuthorities mapset.Set[monadtypes.Address]
	ParentSendersAndAuthorities      mapset.Set[monadtypes.Address]

	// Per-transaction-index-ordered current-block history covering every
	// transaction of the block; canSenderDipIntoReserve consults only the
	// entries up to the transaction under evaluation.
	Senders    []monadtypes.Address
	Authorities [][]monadtypes.Address
}

// MaxReserveFunc resolves a subject address's max reserve, a per-revision
// precompile call in the general case; defaults to DefaultReserveBalance.
type MaxReserveFunc func(addr monadtypes.Address) *uint256.Int

// Tracker is the Reserve-Balance Tracker (), scoped to one
// transaction's execution.
type Tracker struct {
	rules revision.Rules

	trackingEnabled bool
	sender          monadtypes.Address
	senderGasFees   *uint256.Int
	senderCanDip    bool
	getMaxReserve   MaxReserveFunc

	failed mapset.Set[monadtypes.Address]
}

// NewTracker constructs a disabled tracker; call InitFromTx to activate
// it for a specific transaction.
func NewTracker(rules revision.Rules) *Tracker {
	return &Tracker{
		rules:  rules,
		failed: mapset.NewThreadUnsafeSet[monadtypes.Address](),
	}
}

func (t *Tracker) TrackingEnabled() bool { return t.trackingEnabled }

// Rules returns the revision feature bundle the tracker was constructed
// with, so collaborators that only receive a *Tracker (not the Rules that
// produced it) can still branch on revision-gated behavior.
func (t *Tracker) Rules() revision.Rules { return t.rules }
func (t *Tracker) HasViolation() bool    { return t.failed.Cardinality() > 0 }
func (t *Tracker) FailedContains(addr monadtypes.Address) bool {
	return t.failed.Contains(addr)
}

// SubjectAccount implements the subject-account predicate: any
// non-delegated EOA, or any account whose effective code hash is
// non-null (i.e. it has code and that code is not a delegation
// designator).
func (t *Tracker) SubjectAccount(state AccountView, addr monadtypes.Address) (bool, error) {
	var codeHash monadtypes.Word
	var err error
	if t.rules.UseRecentCodeHashForSubject {
		codeHash, err = state.GetCodeHash(addr)
	} else {
		codeHash, err = state.OriginalCodeHash(addr)
	}
	if err != nil {
		return false, err
	}
	if codeHash == monadtypes.EmptyCodeHash {
		return true, nil
	}
	code, err := state.CodeByHash(codeHash)
	if err != nil {
		return false, err
	}
	return !IsDelegated(code), nil
}

// PretxReserve is min(max_reserve(addr), original_balance(addr)).
func (t *Tracker) PretxReserve(state AccountView, addr monadtypes.Address) (*uint256.Int, error) {
	orig, err := state.OriginalBalance(addr)
	if err != nil {
		return nil, err
	}
	maxReserve := t.getMaxReserve(addr)
	if orig.Cmp(maxReserve) < 0 {
		return new(uint256.Int).Set(orig), nil
	}
	return new(uint256.Int).Set(maxReserve), nil
}

// UpdateViolationStatus recomputes addr's cached violation threshold (if
// not already cached this transaction) and refreshes failed-set
// membership against the current balance — the one operation on_credit,
// on_debit, and on_set_code all ultimately delegate to.
func (t *Tracker) UpdateViolationStatus(state AccountView, addr monadtypes.Address) error {
	if !t.trackingEnabled {
		return nil
	}

	cached, err := state.RBThresholdCached(addr)
	if err != nil {
		return err
	}
	if !cached {
		subject, err := t.SubjectAccount(state, addr)
		if err != nil {
			return err
		}
		if !subject {
			if err := state.SetRBThreshold(addr, new(uint256.Int)); err != nil {
				return err
			}
			t.failed.Remove(addr)
			return state.SetRBFailed(addr, false)
		}

		reserve, err := t.PretxReserve(state, addr)
		if err != nil {
			return err
		}
		if addr == t.sender {
			if t.senderCanDip {
				if err := state.SetRBThreshold(addr, new(uint256.Int)); err != nil {
					return err
				}
				t.failed.Remove(addr)
				return state.SetRBFailed(addr, false)
			}
			reserve = new(uint256.Int).Sub(reserve, t.senderGasFees)
		}
		if err := state.SetRBThreshold(addr, reserve); err != nil {
			return err
		}
	}

	threshold, err := state.RBThreshold(addr)
	if err != nil {
		return err
	}
	if threshold.IsZero() {
		t.failed.Remove(addr)
		return state.SetRBFailed(addr, false)
	}

	balance, err := state.GetBalance(addr)
	if err != nil {
		return err
	}
	if balance.Cmp(threshold) < 0 {
		t.failed.Add(addr)
		return state.SetRBFailed(addr, true)
	}
	t.failed.Remove(addr)
	return state.SetRBFailed(addr, false)
}

// OnCredit is called after any balance increase; only accounts already
// in violation are re-evaluated (a credit can only cure a violation, and
// an account not currently failed cannot newly violate from a credit).
func (t *Tracker) OnCredit(state AccountView, addr monadtypes.Address) error {
	if !t.trackingEnabled || !t.failed.Contains(addr) {
		return nil
	}
	return t.UpdateViolationStatus(state, addr)
}

// OnDebit is called after any balance decrease.
func (t *Tracker) OnDebit(state AccountView, addr monadtypes.Address) error {
	return t.UpdateViolationStatus(state, addr)
}

// OnPopReject re-derives failed-set membership for every address dirtied
// since the rejected snapshot, from each address's (unreverted) rb_failed
// cache flag.
func (t *Tracker) OnPopReject(state AccountView, dirtied []monadtypes.Address) error {
	if !t.trackingEnabled {
		return nil
	}
	for _, addr := range dirtied {
		failed, err := state.RBFailed(addr)
		if err != nil {
			return err
		}
		if failed {
			t.failed.Add(addr)
		} else {
			t.failed.Remove(addr)
		}
	}
	return nil
}

// OnSetCode re-evaluates an account's subject status after its code
// changes, only meaningful once the MonadEight "recent code hash" rule
// is active.
func (t *Tracker) OnSetCode(state AccountView, addr monadtypes.Address, code monadtypes.Code) error {
	if !t.trackingEnabled || !t.rules.UseRecentCodeHashForSubject {
		return nil
	}
	if !IsDelegated(code) {
		if err := state.SetRBThreshold(addr, new(uint256.Int)); err != nil {
			return err
		}
		if err := state.SetRBFailed(addr, false); err != nil {
			return err
		}
		t.failed.Remove(addr)
		return nil
	}
	if err := state.ClearRBThreshold(addr); err != nil {
		return err
	}
	return t.UpdateViolationStatus(state, addr)
}

// InitFromTx activates the tracker for one transaction: resolves the
// sender's effective code hash, the sender-can-dip predicate, and the
// sender's gas-fee reservation.
func (t *Tracker) InitFromTx(
	state AccountView,
	sender monadtypes.Address,
	gasLimit uint64,
	gasPrice *uint256.Int,
	txIndex uint64,
	ctx BlockContext,
	getMaxReserve MaxReserveFunc,
) error {
	var senderCodeHash monadtypes.Word
	var err error
	if t.rules.UseRecentCodeHashForSubject {
		senderCodeHash, err = state.GetCodeHash(sender)
	} else {
		senderCodeHash, err = state.OriginalCodeHash(sender)
	}
	if err != nil {
		return err
	}
	var senderCode monadtypes.Code
	if senderCodeHash != monadtypes.EmptyCodeHash {
		senderCode, err = state.CodeByHash(senderCodeHash)
		if err != nil {
			return err
		}
	}

	t.trackingEnabled = true
	t.sender = sender
	t.senderGasFees = new(uint256.Int).Mul(uint256.NewInt(gasLimit), gasPrice)
	t.senderCanDip = canSenderDipIntoReserve(sender, txIndex, IsDelegated(senderCode), ctx)
	if getMaxReserve != nil {
		t.getMaxReserve = getMaxReserve
	} else {
		t.getMaxReserve = func(monadtypes.Address) *uint256.Int { return DefaultReserveBalance() }
	}
	t.failed.Clear()
	return nil
}

// canSenderDipIntoReserve implements "sender can dip"
// predicate.
func canSenderDipIntoReserve(sender monadtypes.Address, i uint64, senderIsDelegated bool, ctx BlockContext) bool {
	if senderIsDelegated {
		return false
	}
	if ctx.GrandparentSendersAndAuthorities != nil && ctx.GrandparentSendersAndAuthorities.Contains(sender) {
		return false
	}
	if ctx.ParentSendersAndAuthorities != nil && ctx.ParentSendersAndAuthorities.Contains(sender) {
		return false
	}
	for j := uint64(0); j <= i && j < uint64(len(ctx.Senders)); j++ {
		if j < i && sender == ctx.Senders[j] {
			return false
		}
		if j < uint64(len(ctx.Authorities)) {
			for _, a := range ctx.Authorities[j] {
				if a == sender {
					return false
				}
			}
		}
	}
	return true
}

// RevertTransaction reports whether, after the EVM has already returned
// success, the chain should veto this transaction's state effects
// because it dipped into the reserve — revert_transaction.
func (t *Tracker) RevertTransaction() bool {
	if !t.trackingEnabled {
		return false
	}
	return t.HasViolation()
}
