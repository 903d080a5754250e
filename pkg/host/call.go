package host

import "context"

// Call is what the host tells a contract about the current invocation.
type Call struct {
	// CurrentAccountID is the account the contract runs on.
	CurrentAccountID string
	// PredecessorID is the immediate caller. For callbacks scheduled by the
	// contract itself it equals CurrentAccountID.
	PredecessorID string
	// SignerID is the account that signed the originating transaction.
	SignerID string
	// SignerPublicKey is the key used to sign the originating transaction.
	SignerPublicKey string
	// AttachedDeposit is the native value attached to this call.
	AttachedDeposit int64
}

type callKey struct{}

func WithCall(ctx context.Context, call Call) context.Context {
	return context.WithValue(ctx, callKey{}, call)
}

func CallFromContext(ctx context.Context) (Call, bool) {
	call, ok := ctx.Value(callKey{}).(Call)
	return call, ok
}
