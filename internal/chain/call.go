package chain

import "errors"

// Errors shared across components. Every one of these aborts the whole
// entry point; the engine restores all stores so no partial effect
// survives a rejection.
var (
	// ErrInvalidCaller rejects nested (programmatic) invocations of
	// keeper entry points. Only the externally observable contract is
	// defined: top-level calls pass, nested calls fail.
	ErrInvalidCaller = errors.New("InvalidCaller: keeper entry points accept top-level callers only")

	// ErrCooldownActive signals a rate-limited entry point called
	// before its window reopened. Expected under keeper races; the
	// loser retries after the interval.
	ErrCooldownActive = errors.New("CooldownPeriodActive")

	// ErrNotOwner rejects owner-restricted configuration calls.
	ErrNotOwner = errors.New("caller is not the owner")

	// ErrUnauthorizedSender rejects unsolicited native-currency
	// transfers into component accounts.
	ErrUnauthorizedSender = errors.New("sender not authorized")

	// ErrInsufficientFunds is an internal ledger underflow guard.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Call describes one external invocation. TopLevel is a capability set
// by the transport layer: HTTP keeper requests are top level, in-process
// programmatic calls are not.
type Call struct {
	Caller   Address
	TopLevel bool
}

// KeeperCall builds a top-level call descriptor.
func KeeperCall(caller Address) Call {
	return Call{Caller: caller, TopLevel: true}
}

// NestedCall builds a non-top-level call descriptor, as seen from a
// contract-mediated or otherwise programmatic origin.
func NestedCall(caller Address) Call {
	return Call{Caller: caller, TopLevel: false}
}
