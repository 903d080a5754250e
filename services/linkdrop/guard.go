package linkdrop

import (
	"linkdrop-controlplane/pkg/host"
	"linkdrop-controlplane/pkg/identity"
)

// Guard authorizes calls against the contract account.
type Guard struct {
	contractID string
}

func NewGuard(contractID string) Guard {
	return Guard{contractID: contractID}
}

// SelfOnly admits only calls whose predecessor is the contract account:
// transactions signed with a key registered on it, and callbacks.
func (g Guard) SelfOnly(call host.Call) error {
	if call.PredecessorID == "" || call.PredecessorID != g.contractID {
		return unauthorized("caller is not " + g.contractID)
	}
	return nil
}

// Credential returns the canonical signer key, which is also the ledger key
// of the balance the call may redeem.
func (g Guard) Credential(call host.Call) (string, error) {
	if call.SignerPublicKey == "" {
		return "", unauthorized("missing signer public key")
	}
	key, err := identity.CanonicalPublicKey(call.SignerPublicKey)
	if err != nil {
		return "", unauthorized("invalid signer public key")
	}
	return key, nil
}
