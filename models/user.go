package models

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
	"gorm.io/gorm"
)

// User is a Slack user, keyed by the Slack user ID.
type User struct {
	gorm.Model
	Uuid   string  `gorm:"index:,unique"`
	Groups []Group `gorm:"many2many:user_groups;"`
}

// Info looks the user up through the web API. It returns nil when Slack
// does not answer.
func (u User) Info(ctx context.Context, api *slack.Client) *slack.User {
	info, err := api.GetUserInfoContext(ctx, u.Uuid)
	if err != nil {
		log.Warn().Err(err).Str("uuid", u.Uuid).Msg("Failed to get user info")
		return nil
	}

	return info
}
