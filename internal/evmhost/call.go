package evmhost

import (
	"github.com/luxfi/geth/crypto"

	"github.com/category-labs/monad-go/monadtypes"
)

// Call dispatches a CALL/STATICCALL/DELEGATECALL/CREATE/CREATE2 request to
// the injected interpreter, snapshotting Transaction State first so a
// REVERT or failed CREATE rolls back exactly this frame's effects without
// unwinding the whole transaction (call(msg)).
func (h *Host) Call(interp Interpreter, msg Message) (*ExecutionResult, error) {
	h.tracer.OnCallEnter(msg.Kind, msg.From, msg.To, msg.Data, msg.Gas, msg.Value)

	snapshot := h.state.Push()

	to := msg.To
	if msg.Kind == CreateKind || msg.Kind == Create2Kind {
		addr, err := h.contractAddress(msg)
		if err != nil {
			h.state.PopReject(snapshot)
			return nil, err
		}
		to = &addr
		if err := h.state.CreateContract(addr); err != nil {
			h.state.PopReject(snapshot)
			return nil, err
		}
	}

	if to != nil {
		if _, err := h.state.AccessAccount(*to); err != nil {
			h.state.PopReject(snapshot)
			return nil, err
		}
	}

	if msg.Value != nil && msg.Value.Sign() > 0 && to != nil {
		if err := h.state.SubBalance(msg.From, msg.Value); err != nil {
			h.state.PopReject(snapshot)
			return nil, err
		}
		if err := h.tracker.OnDebit(h.state, msg.From); err != nil {
			h.state.PopReject(snapshot)
			return nil, err
		}
		if err := h.state.AddBalance(*to, msg.Value); err != nil {
			h.state.PopReject(snapshot)
			return nil, err
		}
		if err := h.tracker.OnCredit(h.state, *to); err != nil {
			h.state.PopReject(snapshot)
			return nil, err
		}
	}

	callMsg := msg
	callMsg.To = to
	result, err := interp.Run(h, callMsg)
	if err != nil {
		h.state.PopReject(snapshot)
		h.tracer.OnCallExit(nil, err)
		return nil, err
	}

	if result.Reverted {
		h.state.PopReject(snapshot)
		// Only the addresses this frame itself could have dirtied for
		// reserve-balance purposes need re-evaluation post-revert: the
		// sender and the call target's balance changes just unwound.
		dirtied := []monadtypes.Address{msg.From}
		if to != nil {
			dirtied = append(dirtied, *to)
		}
		if rerr := h.tracker.OnPopReject(h.state, dirtied); rerr != nil {
			h.tracer.OnCallExit(result, rerr)
			return nil, rerr
		}
		h.tracer.OnCallExit(result, nil)
		return result, nil
	}

	if (msg.Kind == CreateKind || msg.Kind == Create2Kind) && to != nil {
		codeHash := monadtypes.WordFromCommon(crypto.Keccak256Hash(result.ReturnData))
		if err := h.state.SetCode(*to, codeHash, result.ReturnData); err != nil {
			h.state.PopReject(snapshot)
			return nil, err
		}
		result.CreatedAddress = to
	}

	if msg.Value != nil && msg.Value.Sign() > 0 && to != nil {
		h.EmitNativeTransfer(msg.From, *to, msg.Value)
	}

	h.state.PopAccept(snapshot)
	h.tracer.OnCallExit(result, nil)
	return result, nil
}

// contractAddress computes the address a CREATE/CREATE2 installs its code
// at, delegating the actual hashing to the opaque crypto collaborator
// already used elsewhere in this module (the Trie Store's node hashing).
//
// CREATE derives from the creator's nonce as it stood before this message,
// not its current state: for the top-level dispatch (msg.Depth == 0),
// RunTransaction has already incremented tx.Sender's nonce by the time
// Call reaches here, so the nonce to key off is the transaction's own
// declared nonce rather than a fresh state read. Nested creations read the
// creator's live nonce, since nothing upstream of them has bumped it yet.
func (h *Host) contractAddress(msg Message) (monadtypes.Address, error) {
	if msg.Kind == Create2Kind {
		codeHash := crypto.Keccak256(msg.Data)
		addr := crypto.CreateAddress2(msg.From.ToCommonAddress(), [32]byte(msg.Salt), codeHash)
		return monadtypes.AddressFromCommon(addr), nil
	}
	var nonce uint64
	if msg.Depth == 0 {
		nonce = h.tx.Nonce
	} else {
		n, err := h.state.GetNonce(msg.From)
		if err != nil {
			return monadtypes.Address{}, err
		}
		nonce = n
	}
	addr := crypto.CreateAddress(msg.From.ToCommonAddress(), nonce)
	return monadtypes.AddressFromCommon(addr), nil
}
