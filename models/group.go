package models

import (
	"gorm.io/gorm"
)

// GlobalAdminsGroup members pass every permission check.
const GlobalAdminsGroup = "globalAdmins"

// Group is a named set of Slack users that routes grant access to.
type Group struct {
	gorm.Model
	Name    string `gorm:"index:,unique"`
	Members []User `gorm:"many2many:user_groups;"`
}

// HasMember reports whether user is among the preloaded Members.
func (g Group) HasMember(user User) bool {
	for _, member := range g.Members {
		if member.Uuid == user.Uuid {
			return true
		}
	}
	return false
}
