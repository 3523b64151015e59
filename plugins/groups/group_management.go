package groups

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/NexusSwitchboard/nexus-conn-slack/models"
	"github.com/NexusSwitchboard/nexus-conn-slack/plugins/helpers"
	"github.com/NexusSwitchboard/nexus-conn-slack/router"
	"github.com/slack-go/slack"
	"gorm.io/gorm"
)

// AdminGroup may list every group and change memberships.
const AdminGroup = "admins"

const usage = "Usage: `groups mine`, `groups all`, `groups add @user GROUP`, `groups remove @user GROUP`"

// GetSubCommandRoute manages the groups that route permissions refer to.
// Anyone may list their own groups; everything else needs AdminGroup.
func GetSubCommandRoute() *router.SubCommandRoute {
	var pluginRoute router.SubCommandRoute
	pluginRoute.Permissions = append(pluginRoute.Permissions, "*")
	pluginRoute.Name = "groups"
	pluginRoute.Description = "Manages permission groups"
	pluginRoute.Help = "groups mine|all|add @user GROUP|remove @user GROUP"
	pluginRoute.Plugin = func(ctx context.Context, r router.Router, route router.Route, req router.SubCommandRequest) (*slack.Msg, error) {
		if r.DbConnection == nil {
			return router.EphemeralMsg("Groups are unavailable without a database."), nil
		}

		args := strings.Fields(req.Text)
		verb := "mine"
		if len(args) > 0 {
			verb = strings.ToLower(args[0])
		}

		if verb == "mine" {
			return myGroups(r.DbConnection, req.User)
		}
		if !r.Can(req.User, []string{AdminGroup}) {
			return router.EphemeralMsg("I'm sorry, <@" + req.User.Uuid + ">, but you're not allowed to do that."), nil
		}

		switch verb {
		case "all":
			return allGroups(r.DbConnection)
		case "add", "remove":
			if len(args) != 3 {
				return router.EphemeralMsg(usage), nil
			}
			uid, ok := helpers.MentionedUser(args[1])
			if !ok {
				return router.EphemeralMsg(usage), nil
			}
			if verb == "add" {
				return addUserToGroup(r.DbConnection, uid, args[2])
			}
			return removeUserFromGroup(r.DbConnection, uid, args[2])
		default:
			return router.EphemeralMsg(usage), nil
		}
	}
	return &pluginRoute
}

func myGroups(db *gorm.DB, user models.User) (*slack.Msg, error) {
	var currentUser models.User
	if err := db.Preload("Groups").Where(models.User{Uuid: user.Uuid}).FirstOrCreate(&currentUser).Error; err != nil {
		return nil, fmt.Errorf("groups: load %s: %w", user.Uuid, err)
	}

	if len(currentUser.Groups) == 0 {
		return router.EphemeralMsg("You don't seem to be a member of _any_ groups. Bummer."), nil
	}
	names := make([]string, 0, len(currentUser.Groups))
	for _, group := range currentUser.Groups {
		names = append(names, group.Name)
	}
	return router.EphemeralMsg("Here are your groups, <@" + user.Uuid + ">:\n" + bullets(names)), nil
}

func allGroups(db *gorm.DB) (*slack.Msg, error) {
	var groups []models.Group
	if err := db.Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("groups: list: %w", err)
	}
	if len(groups) == 0 {
		return router.EphemeralMsg("I don't know about any groups yet."), nil
	}
	names := make([]string, 0, len(groups))
	for _, group := range groups {
		names = append(names, group.Name)
	}
	return router.EphemeralMsg("Here are *all* the groups I know about:\n" + bullets(names)), nil
}

func addUserToGroup(db *gorm.DB, uid, groupName string) (*slack.Msg, error) {
	var foundGroup models.Group
	var foundUser models.User

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(models.Group{Name: groupName}).FirstOrCreate(&foundGroup).Error; err != nil {
			return err
		}
		if err := tx.Where(models.User{Uuid: uid}).FirstOrCreate(&foundUser).Error; err != nil {
			return err
		}
		return tx.Model(&foundGroup).Association("Members").Append(&foundUser)
	})
	if err != nil {
		return nil, fmt.Errorf("groups: add %s to %s: %w", uid, groupName, err)
	}
	return router.InChannelMsg(fmt.Sprintf("I successfully added <@%s> to %s!", uid, groupName)), nil
}

func removeUserFromGroup(db *gorm.DB, uid, groupName string) (*slack.Msg, error) {
	var foundGroup models.Group
	err := db.Preload("Members").Where(models.Group{Name: groupName}).First(&foundGroup).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return router.EphemeralMsg(fmt.Sprintf("I couldn't find a group named '%s'.", groupName)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("groups: load %s: %w", groupName, err)
	}

	var member *models.User
	for i := range foundGroup.Members {
		if foundGroup.Members[i].Uuid == uid {
			member = &foundGroup.Members[i]
		}
	}
	if member == nil {
		return router.EphemeralMsg(fmt.Sprintf("It doesn't look like <@%s> is a member of %s.", uid, groupName)), nil
	}

	if err := db.Model(&foundGroup).Association("Members").Delete(member); err != nil {
		return nil, fmt.Errorf("groups: remove %s from %s: %w", uid, groupName, err)
	}
	return router.InChannelMsg(fmt.Sprintf("<@%s> is no longer a member of %s!", uid, groupName)), nil
}

func bullets(names []string) string {
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "*-* %s\n", name)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
