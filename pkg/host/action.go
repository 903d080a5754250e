package host

type ActionKind string

const (
	ActionCreateAccount        ActionKind = "create_account"
	ActionTransfer             ActionKind = "transfer"
	ActionAddFullAccessKey     ActionKind = "add_full_access_key"
	ActionAddFunctionCallKey   ActionKind = "add_function_call_key"
	ActionDeleteKey            ActionKind = "delete_key"
	ActionDeployContract       ActionKind = "deploy_contract"
	ActionDeployGlobalContract ActionKind = "deploy_global_contract"
	ActionUseGlobalContract    ActionKind = "use_global_contract"
)

// GlobalMode selects how shared code is identified.
type GlobalMode string

const (
	GlobalByHash      GlobalMode = "code_hash"
	GlobalByAccountID GlobalMode = "account_id"
)

// Action is one account-affecting step. Only the fields relevant to Kind
// are set.
type Action struct {
	Kind ActionKind `json:"kind"`

	Amount    int64  `json:"amount,omitempty"`
	PublicKey string `json:"public_key,omitempty"`

	// Allowance nil means unlimited.
	Allowance   *int64 `json:"allowance,omitempty"`
	ReceiverID  string `json:"receiver_id,omitempty"`
	MethodNames string `json:"method_names,omitempty"`

	Code       []byte     `json:"code,omitempty"`
	GlobalMode GlobalMode `json:"global_mode,omitempty"`
	CodeHash   []byte     `json:"code_hash,omitempty"`
	AccountID  string     `json:"account_id,omitempty"`
}

func CreateAccount() Action {
	return Action{Kind: ActionCreateAccount}
}

func Transfer(amount int64) Action {
	return Action{Kind: ActionTransfer, Amount: amount}
}

func AddFullAccessKey(publicKey string) Action {
	return Action{Kind: ActionAddFullAccessKey, PublicKey: publicKey}
}

// AddFunctionCallKey adds a key restricted to calling methodNames on
// receiverID. A nil allowance is unlimited.
func AddFunctionCallKey(publicKey string, allowance *int64, receiverID, methodNames string) Action {
	return Action{
		Kind:        ActionAddFunctionCallKey,
		PublicKey:   publicKey,
		Allowance:   allowance,
		ReceiverID:  receiverID,
		MethodNames: methodNames,
	}
}

func DeleteKey(publicKey string) Action {
	return Action{Kind: ActionDeleteKey, PublicKey: publicKey}
}

func DeployContract(code []byte) Action {
	return Action{Kind: ActionDeployContract, Code: code}
}

func DeployGlobalContract(code []byte, mode GlobalMode) Action {
	return Action{Kind: ActionDeployGlobalContract, Code: code, GlobalMode: mode}
}

func UseGlobalContractByHash(hash []byte) Action {
	return Action{Kind: ActionUseGlobalContract, GlobalMode: GlobalByHash, CodeHash: hash}
}

func UseGlobalContractByAccount(accountID string) Action {
	return Action{Kind: ActionUseGlobalContract, GlobalMode: GlobalByAccountID, AccountID: accountID}
}

// Batch is an ordered list of actions applied to one receiver, all or
// nothing.
type Batch struct {
	ReceiverID string   `json:"receiver_id"`
	Actions    []Action `json:"actions"`
}

func NewBatch(receiverID string, actions ...Action) Batch {
	return Batch{ReceiverID: receiverID, Actions: actions}
}
