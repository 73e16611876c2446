package domain

import "time"

// AuditFields holds standard audit information for domain entities.
type AuditFields struct {
	CreatedAt     time.Time `json:"createdAt"`
	CreatedBy     string    `json:"createdBy"` // UserID reference
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
	LastUpdatedBy string    `json:"lastUpdatedBy"` // UserID reference
}

// Channel identifies where a transaction originated.
type Channel string

const (
	ChannelATM      Channel = "atm"
	ChannelMobile   Channel = "mobile"
	ChannelInternet Channel = "internet"
	ChannelUSSD     Channel = "ussd"
	ChannelAgent    Channel = "agent"
	ChannelBranch   Channel = "branch"
	ChannelPOS      Channel = "pos"
)
