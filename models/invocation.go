package models

import (
	"time"

	"gorm.io/gorm"
)

// Outcomes recorded for an Invocation.
const (
	OutcomeReplied      = "replied"
	OutcomeDeferred     = "deferred"
	OutcomeFailed       = "failed"
	OutcomeDenied       = "denied"
	OutcomeUnrecognized = "unrecognized"
)

// Invocation is the audit row written for every slash command dispatch.
type Invocation struct {
	gorm.Model
	Command    string `gorm:"index"`
	SubCommand string
	UserUuid   string `gorm:"index"`
	ChannelID  string
	Outcome    string
	Duration   time.Duration
}

// AutoMigrate creates or updates every table the connection uses.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Group{}, &User{}, &Invocation{})
}
