package models

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestUserInfo_ReturnsNilOnAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":false,"error":"user_not_found"}`))
	}))
	defer server.Close()

	api := slack.New("xoxb-fake", slack.OptionAPIURL(server.URL+"/"))

	user := User{Uuid: "U_NONEXISTENT"}
	assert.Nil(t, user.Info(context.Background(), api))
}

func TestUserInfo_ReturnsUserOnSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"ok": true,
			"user": {
				"id": "U123",
				"name": "testuser",
				"real_name": "Test User",
				"tz": "America/New_York",
				"profile": {"email": "test@example.com"}
			}
		}`))
	}))
	defer server.Close()

	api := slack.New("xoxb-fake", slack.OptionAPIURL(server.URL+"/"))

	info := User{Uuid: "U123"}.Info(context.Background(), api)

	require.NotNil(t, info)
	assert.Equal(t, "Test User", info.RealName)
	assert.Equal(t, "America/New_York", info.TZ)
	assert.Equal(t, "test@example.com", info.Profile.Email)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return db
}

func TestGroupMembership_RoundTrip(t *testing.T) {
	db := openTestDB(t)

	alice := User{Uuid: "U_ALICE"}
	bob := User{Uuid: "U_BOB"}
	db.Create(&alice)
	db.Create(&bob)

	group := Group{Name: "deployers"}
	db.Create(&group)
	require.NoError(t, db.Model(&group).Association("Members").Append(&alice))

	var loaded Group
	require.NoError(t, db.Preload("Members").Where(Group{Name: "deployers"}).First(&loaded).Error)

	assert.True(t, loaded.HasMember(alice))
	assert.False(t, loaded.HasMember(bob))
}

func TestInvocation_Persists(t *testing.T) {
	db := openTestDB(t)

	db.Create(&Invocation{
		Command:    "/deploy",
		SubCommand: "status",
		UserUuid:   "U1",
		ChannelID:  "C1",
		Outcome:    OutcomeReplied,
		Duration:   120 * time.Millisecond,
	})

	var rows []Invocation
	db.Where(Invocation{Command: "/deploy"}).Find(&rows)

	require.Len(t, rows, 1)
	assert.Equal(t, "status", rows[0].SubCommand)
	assert.Equal(t, OutcomeReplied, rows[0].Outcome)
	assert.Equal(t, 120*time.Millisecond, rows[0].Duration)
}
