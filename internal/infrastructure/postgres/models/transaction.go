package models

import (
	"time"
)

type TransactionModel struct {
	ID                string `gorm:"primaryKey;type:uuid"`
	UserID            string `gorm:"index:idx_user_created"`
	ServiceKind       string `gorm:"index"`
	FundingMethod     string
	AmountMinorUnits  int64
	PayloadJSON       string  `gorm:"type:jsonb"`
	ClientToken       *string `gorm:"uniqueIndex:ux_user_client_token"`
	ClientTokenUserID *string `gorm:"uniqueIndex:ux_user_client_token"`
	CallbackURL       string
	GatewayReference  string `gorm:"index"`
	ProviderRequestID string `gorm:"index"`
	DeliveredArtifact string
	State             string `gorm:"index:idx_state_next_poll"`
	FailureCode       string
	FailureMessage    string
	Attempts          int32
	NextPollAt        time.Time `gorm:"index:idx_state_next_poll"`
	LeaseUntil        *time.Time
	CreatedAt         time.Time `gorm:"index:idx_user_created"`
	UpdatedAt         time.Time
	TerminalAt        *time.Time
}

type TransactionEventModel struct {
	ID            string `gorm:"primaryKey"`
	TransactionID string `gorm:"type:uuid;not null;index"`
	FromState     string
	ToState       string
	Actor         string
	Reason        string
	CreatedAt     time.Time `gorm:"not null"`
}
