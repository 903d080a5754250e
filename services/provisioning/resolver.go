package provisioning

import (
	"encoding/base64"
	"errors"
	"fmt"

	"linkdrop-controlplane/pkg/host"
	"linkdrop-controlplane/pkg/identity"
)

// HashSize is the length of a shared code hash.
const HashSize = 32

var ErrInvalidOptions = errors.New("invalid options")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOptions, fmt.Sprintf(format, args...))
}

// FunctionCallKey is a validated limited access key. A nil Allowance is
// unlimited.
type FunctionCallKey struct {
	PublicKey   string
	Allowance   *int64
	ReceiverID  string
	MethodNames string
}

// Plan is a validated option set. Code is nil when no code is deployed.
type Plan struct {
	FullAccessKeys   []string
	FunctionCallKeys []FunctionCallKey
	Code             CodeSource
}

// Validate checks o and converts it into a Plan.
func Validate(o Options) (Plan, error) {
	if o.empty() {
		return Plan{}, invalid("no options")
	}
	if o.codeSourceCount() > 1 {
		return Plan{}, invalid("conflicting code sources")
	}

	var plan Plan
	for i, raw := range o.FullAccessKeys {
		key, err := identity.CanonicalPublicKey(raw)
		if err != nil {
			return Plan{}, invalid("full_access_keys[%d]: %v", i, err)
		}
		plan.FullAccessKeys = append(plan.FullAccessKeys, key)
	}

	for i, lk := range o.LimitedAccessKeys {
		key, err := identity.CanonicalPublicKey(lk.PublicKey)
		if err != nil {
			return Plan{}, invalid("limited_access_keys[%d]: %v", i, err)
		}
		if err := identity.ValidateAccountID(lk.ReceiverID); err != nil {
			return Plan{}, invalid("limited_access_keys[%d].receiver_id: %v", i, err)
		}

		fk := FunctionCallKey{
			PublicKey:   key,
			ReceiverID:  lk.ReceiverID,
			MethodNames: lk.MethodNames,
		}
		if lk.Allowance != 0 {
			allowance := int64(lk.Allowance)
			fk.Allowance = &allowance
		}
		plan.FunctionCallKeys = append(plan.FunctionCallKeys, fk)
	}

	code, err := o.codeSource()
	if err != nil {
		return Plan{}, err
	}
	plan.Code = code

	return plan, nil
}

func (o Options) codeSource() (CodeSource, error) {
	switch {
	case o.ContractBytes != nil:
		return ContractBytes{Code: o.ContractBytes}, nil
	case o.ContractBytesBase64 != nil:
		code, err := base64.StdEncoding.DecodeString(*o.ContractBytesBase64)
		if err != nil {
			return nil, invalid("contract_bytes_base64: %v", err)
		}
		return ContractBytesBase64{Code: code}, nil
	case o.GlobalContractCode != nil:
		return PublishGlobalByHash{Code: o.GlobalContractCode}, nil
	case o.GlobalContractCodeByAccountID != nil:
		return PublishGlobalByAccount{Code: o.GlobalContractCodeByAccountID}, nil
	case o.UseGlobalContractHash != nil:
		if len(o.UseGlobalContractHash) != HashSize {
			return nil, invalid("use_global_contract_hash: want %d bytes, got %d", HashSize, len(o.UseGlobalContractHash))
		}
		return UseGlobalByHash{Hash: o.UseGlobalContractHash}, nil
	case o.UseGlobalContractAccountID != nil:
		if err := identity.ValidateAccountID(*o.UseGlobalContractAccountID); err != nil {
			return nil, invalid("use_global_contract_account_id: %v", err)
		}
		return UseGlobalByAccount{AccountID: *o.UseGlobalContractAccountID}, nil
	}
	return nil, nil
}

// Actions linearizes the plan for a new account funded with amount.
func (p Plan) Actions(amount int64) []host.Action {
	actions := make([]host.Action, 0, 3+len(p.FullAccessKeys)+len(p.FunctionCallKeys))
	actions = append(actions, host.CreateAccount(), host.Transfer(amount))

	for _, key := range p.FullAccessKeys {
		actions = append(actions, host.AddFullAccessKey(key))
	}
	for _, fk := range p.FunctionCallKeys {
		actions = append(actions, host.AddFunctionCallKey(fk.PublicKey, fk.Allowance, fk.ReceiverID, fk.MethodNames))
	}
	if p.Code != nil {
		actions = append(actions, p.Code.Action())
	}

	return actions
}

// Resolve validates o and returns the ordered actions that create an
// account funded with amount.
func Resolve(amount int64, o Options) ([]host.Action, error) {
	plan, err := Validate(o)
	if err != nil {
		return nil, err
	}
	return plan.Actions(amount), nil
}

// Plain returns the actions of a plain create_account: one full access key
// and no code. newPublicKey must already be canonical.
func Plain(newPublicKey string, amount int64) []host.Action {
	return Plan{FullAccessKeys: []string{newPublicKey}}.Actions(amount)
}
