package ledger

import "time"

// KeyBalance is one ledger entry: the balance claimable with a public key.
type KeyBalance struct {
	PublicKey string    `gorm:"column:public_key;primaryKey;size:128"`
	Balance   int64     `gorm:"column:balance;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (KeyBalance) TableName() string {
	return "linkdrop_keys"
}
