package linkdrop

// State is a step of a redemption, used in logs and metrics.
type State string

const (
	StateDeposited   State = "deposited"
	StateRedeeming   State = "redeeming"
	StateConfirmed   State = "confirmed"
	StateCompensated State = "compensated"
)

// Flow tags the pending request a callback resolves.
type Flow string

const (
	FlowClaim     Flow = "claim"
	FlowClaimTo   Flow = "claim_existing"
	FlowProvision Flow = "provision"
)

// Callback methods.
const (
	MethodOnAccountCreatedAndClaimed = "on_account_created_and_claimed"
	MethodOnAccountCreated           = "on_account_created"
)

// ClaimMethods are the only methods a key registered by Send may call.
const ClaimMethods = "claim,create_account_and_claim"

// CallbackArgs correlates a callback with the request that scheduled it.
type CallbackArgs struct {
	Flow       Flow   `json:"flow"`
	Amount     int64  `json:"amount,string"`
	SigningKey string `json:"signing_key,omitempty"`
	RefundTo   string `json:"refund_to,omitempty"`
}

// KeyInfo is returned by GetKeyInformation.
type KeyInfo struct {
	Balance int64 `json:"balance,string"`
}

// Submission describes a request handed to the host.
type Submission struct {
	ReceiptID string `json:"receipt_id"`
	Amount    int64  `json:"amount,string"`
}
