// Package models defines the database models for governance monitoring.
package models

import "time"

// Proposal is a governance proposal the validator has not voted on yet.
// The reminder subsystem reads these rows and bumps ReminderStage.
type Proposal struct {
	ID            uint   `gorm:"primaryKey"`
	Network       string `gorm:"size:64;not null;index:ux_network_proposal,unique"`
	ProposalID    uint64 `gorm:"not null;index:ux_network_proposal,unique"`
	Title         string `gorm:"type:text"`
	VotingEndTime int64  `gorm:"index"` // unix seconds
	Voted         bool   `gorm:"index"`
	DiscoveredAt  int64  // unix seconds
	ReminderStage int    `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
