package sandbox

import (
	"time"

	"gorm.io/datatypes"
)

type Account struct {
	ID      string `gorm:"column:id;primaryKey;size:64"`
	Balance int64  `gorm:"column:balance;not null"`
	// CodeHash is the hex sha256 of code deployed directly on the account.
	CodeHash string `gorm:"column:code_hash;size:64"`
	// GlobalContractID references shared code the account runs.
	GlobalContractID string    `gorm:"column:global_contract_id;size:128"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (Account) TableName() string { return "sandbox_accounts" }

const (
	PermissionFullAccess   = "full_access"
	PermissionFunctionCall = "function_call"
)

type AccessKey struct {
	AccountID   string    `gorm:"column:account_id;primaryKey;size:64"`
	PublicKey   string    `gorm:"column:public_key;primaryKey;size:128"`
	Permission  string    `gorm:"column:permission;size:16"`
	Allowance   *int64    `gorm:"column:allowance"`
	ReceiverID  string    `gorm:"column:receiver_id;size:64"`
	MethodNames string    `gorm:"column:method_names"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (AccessKey) TableName() string { return "sandbox_access_keys" }

// GlobalContract is published code. ID is "hash:<hex>" or "account:<id>".
type GlobalContract struct {
	ID        string    `gorm:"column:id;primaryKey;size:128"`
	CodeHash  string    `gorm:"column:code_hash;size:64"`
	Code      []byte    `gorm:"column:code"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (GlobalContract) TableName() string { return "sandbox_global_contracts" }

const (
	ReceiptSucceeded = "succeeded"
	ReceiptFailed    = "failed"
)

// Receipt records the outcome of one batch of a request.
type Receipt struct {
	ID         string         `gorm:"column:id;primaryKey;size:96"`
	RequestID  string         `gorm:"column:request_id;index;size:64"`
	BatchIndex int            `gorm:"column:batch_index"`
	ReceiverID string         `gorm:"column:receiver_id;size:64"`
	Actions    datatypes.JSON `gorm:"column:actions"`
	Status     string         `gorm:"column:status;size:16"`
	Error      string         `gorm:"column:error"`
	CreatedAt  time.Time      `gorm:"column:created_at"`
}

func (Receipt) TableName() string { return "sandbox_receipts" }

func Models() []any {
	return []any{&Account{}, &AccessKey{}, &GlobalContract{}, &Receipt{}}
}
