package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/NexusSwitchboard/nexus-conn-slack/conf"
	"github.com/NexusSwitchboard/nexus-conn-slack/models"
	"github.com/NexusSwitchboard/nexus-conn-slack/plugins/fallback"
	"github.com/NexusSwitchboard/nexus-conn-slack/plugins/permission_denied"
	"github.com/NexusSwitchboard/nexus-conn-slack/router"
	"github.com/NexusSwitchboard/nexus-conn-slack/webhooks"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var ErrDisconnected = errors.New("slack connection is disconnected")

// Lifecycle is the contract a Nexus host drives a connection through.
type Lifecycle interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

var _ Lifecycle = (*Connection)(nil)

// Connection plugs Slack into a Nexus host. The bot-scoped Client is
// always present; UserClient is set only when a user token is configured.
type Connection struct {
	Router     router.Router
	Client     *slack.Client
	UserClient *slack.Client
	Webhooks   *webhooks.Client

	config     conf.Config
	httpClient *http.Client
	seen       *eventIDs

	mu        sync.RWMutex
	connected bool
	closed    bool
	ownsDB    bool
	botUID    string
	ctx       context.Context
	cancel    context.CancelFunc
	inflight  sync.WaitGroup
}

// Setup builds a Connection from cfg. Nothing talks to Slack or the
// database until Connect.
func Setup(cfg conf.Config) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var options []slack.Option
	if cfg.Slack.APIURL != "" {
		options = append(options, slack.OptionAPIURL(cfg.Slack.APIURL))
	}

	conn := &Connection{
		Router:     *router.NewRouter(),
		Client:     slack.New(cfg.Slack.BotToken, options...),
		Webhooks:   webhooks.New(cfg.Webhooks, nil),
		config:     cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		seen:       newEventIDs(1024),
	}
	if cfg.Slack.UserToken != "" {
		conn.UserClient = slack.New(cfg.Slack.UserToken, options...)
	}

	conn.Router.DefaultMentionRoute = *fallback.GetMentionRoute()
	conn.Router.DeniedEventRoute = *permission_denied.GetEventRoute()
	conn.Router.DeniedSlashCommandRoute = *permission_denied.GetSubCommandRoute()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	log.Debug().Strs("globalAdmins", cfg.GlobalAdmins).Msg("Pulled globalAdmins")
	return conn, nil
}

// Connect authenticates the bot token, opens and migrates the database and
// seeds the global admins group. Calling it on a connected Connection is a
// no-op.
func (conn *Connection) Connect(ctx context.Context) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return ErrDisconnected
	}
	if conn.connected {
		return nil
	}

	auth, err := conn.Client.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	conn.botUID = auth.UserID
	log.Info().Str("team", auth.Team).Str("bot", auth.UserID).Msg("Authenticated with Slack")

	if conn.Router.DbConnection == nil {
		db, err := openDatabase(conn.config.Database)
		if err != nil {
			return err
		}
		conn.Router.DbConnection = db
		conn.ownsDB = true
	}
	if err := conn.Router.SetupDb(); err != nil {
		conn.abandonDB()
		return fmt.Errorf("db: migrate: %w", err)
	}
	if err := seedGlobalAdmins(conn.Router.DbConnection, conn.config.GlobalAdmins); err != nil {
		conn.abandonDB()
		return err
	}

	conn.ctx, conn.cancel = context.WithCancel(context.Background())
	conn.connected = true
	return nil
}

// Disconnect stops accepting requests, cancels running plugins and waits
// for them until ctx is done.
func (conn *Connection) Disconnect(ctx context.Context) error {
	conn.mu.Lock()
	if conn.closed {
		conn.mu.Unlock()
		return nil
	}
	conn.closed = true
	wasConnected := conn.connected
	conn.connected = false
	if conn.cancel != nil {
		conn.cancel()
	}
	conn.mu.Unlock()

	if !wasConnected {
		conn.releaseDB()
		return nil
	}

	done := make(chan struct{})
	go func() {
		conn.inflight.Wait()
		close(done)
	}()

	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = fmt.Errorf("slack: waiting for plugins: %w", ctx.Err())
	}

	conn.releaseDB()
	log.Info().Msg("Slack connection disconnected")
	return waitErr
}

// releaseDB closes a database Connect opened itself. A database the host
// handed in through Router.DbConnection is left open.
func (conn *Connection) releaseDB() {
	if !conn.ownsDB || conn.Router.DbConnection == nil {
		return
	}
	if sqlDB, err := conn.Router.DbConnection.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}
	conn.ownsDB = false
}

// abandonDB undoes a failed Connect so that a retry opens the database
// again.
func (conn *Connection) abandonDB() {
	if conn.ownsDB {
		conn.releaseDB()
		conn.Router.DbConnection = nil
	}
}

// track reserves an in-flight slot for a plugin goroutine. It fails once
// Disconnect has started, so Disconnect never waits on a slot taken after
// it began waiting.
func (conn *Connection) track() bool {
	conn.mu.RLock()
	defer conn.mu.RUnlock()
	if conn.closed {
		return false
	}
	conn.inflight.Add(1)
	return true
}

// Connected reports whether Connect succeeded and Disconnect has not run.
func (conn *Connection) Connected() bool {
	conn.mu.RLock()
	defer conn.mu.RUnlock()
	return conn.connected
}

// BotUserID is the Slack user ID of the bot, learned on Connect or from
// event authorizations.
func (conn *Connection) BotUserID() string {
	conn.mu.RLock()
	defer conn.mu.RUnlock()
	return conn.botUID
}

func (conn *Connection) setBotUserID(uid string) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.botUID == "" {
		conn.botUID = uid
	}
}

// API is the bot-scoped web API client.
func (conn *Connection) API() *slack.Client { return conn.Client }

// UserAPI is the user-scoped web API client, nil without a user token.
func (conn *Connection) UserAPI() *slack.Client { return conn.UserClient }

// Config returns the configuration the connection was set up with.
func (conn *Connection) Config() conf.Config { return conn.config }

// baseContext is cancelled by Disconnect.
func (conn *Connection) baseContext() context.Context {
	conn.mu.RLock()
	defer conn.mu.RUnlock()
	if conn.ctx == nil {
		return context.Background()
	}
	return conn.ctx
}

func (conn *Connection) isClosed() bool {
	conn.mu.RLock()
	defer conn.mu.RUnlock()
	return conn.closed
}

// Run serves Handler on the configured listen address until ctx is done.
func (conn *Connection) Run(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              conn.config.Server.Listen,
		Handler:           conn.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown")
		}
	}()

	log.Info().Str("listen", conn.config.Server.Listen).Str("base", conn.config.Server.BasePath).Msg("Server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("slack: serve: %w", err)
	}
	return nil
}

func openDatabase(cfg conf.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case conf.DriverMySQL:
		dialector = mysql.Open(cfg.DataSource())
	default:
		dialector = sqlite.Open(cfg.DataSource())
	}

	log.Debug().Str("driver", cfg.Driver).Msg("Connecting to DB...")
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(3 * time.Minute)
	return db, nil
}

func seedGlobalAdmins(db *gorm.DB, admins []string) error {
	var group models.Group
	if err := db.Where(models.Group{Name: models.GlobalAdminsGroup}).FirstOrCreate(&group).Error; err != nil {
		return fmt.Errorf("db: seed %s: %w", models.GlobalAdminsGroup, err)
	}

	members := make([]models.User, 0, len(admins))
	for _, uuid := range admins {
		var user models.User
		if err := db.FirstOrCreate(&user, models.User{Uuid: uuid}).Error; err != nil {
			return fmt.Errorf("db: seed admin %s: %w", uuid, err)
		}
		members = append(members, user)
	}
	if err := db.Model(&group).Association("Members").Replace(members); err != nil {
		return fmt.Errorf("db: seed %s members: %w", models.GlobalAdminsGroup, err)
	}
	return nil
}
