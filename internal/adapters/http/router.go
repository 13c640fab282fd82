package http

import (
	"context"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/adapters/signal"
	"github.com/dkeye/Consult/internal/app/orch"
	"github.com/dkeye/Consult/internal/config"
	"github.com/dkeye/Consult/internal/domain"
)

const (
	sessionName    = "ConsultSessions"
	clientTokenKey = "client_token"
	joinTokenKey   = "join_token"
)

// Backend is the persistence the REST surface needs.
type Backend interface {
	CreateMeeting(ctx context.Context, room domain.RoomName, password string, expiresAt *time.Time) (*domain.Meeting, error)
	ListMeetings(ctx context.Context) ([]domain.Meeting, error)
	ChatMessages(ctx context.Context, room domain.RoomName) ([]domain.ChatMessage, error)
	SubmitConsent(ctx context.Context, c domain.Consent) (uint, string, error)
	ListConsents(ctx context.Context) ([]domain.Consent, error)
}

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware pins a stable client token in the cookie session and
// exposes it, plus any join token from the consent form, on the gin context.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		token, _ := s.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			s.Set(clientTokenKey, token)
			if err := s.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(clientTokenKey, token)
		if jt, ok := s.Get(joinTokenKey).(string); ok && jt != "" {
			c.Set(joinTokenKey, jt)
		}
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, backend Backend) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Without trusted proxies ClientIP is the socket peer, never X-Forwarded-For.
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Strs("proxies", cfg.TrustedProxies).Msg("invalid trusted_proxies, trusting none")
		_ = r.SetTrustedProxies(nil)
	}
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	h := &handlers{orch: o, backend: backend, iceServers: cfg.WebRTCICEServers()}
	r.GET("/health", h.health)

	api := r.Group("/api")
	api.GET("/ice-servers", h.ice)
	if backend != nil {
		api.POST("/consents", h.submitConsent)
	}

	if cfg.AdminPassword != "" {
		admin := api.Group("", gin.BasicAuth(gin.Accounts{cfg.AdminUsername: cfg.AdminPassword}))
		admin.GET("/stats", h.stats)
		admin.GET("/rooms", h.rooms)
		if backend != nil {
			admin.POST("/meetings", h.createMeeting)
			admin.GET("/meetings", h.listMeetings)
			admin.GET("/meetings/:room/messages", h.meetingMessages)
			admin.GET("/consents", h.listConsents)
		}
	} else {
		log.Warn().Str("module", "adapters.http").Msg("admin_password not set, operator API disabled")
	}

	ctrl := signal.NewSignalWSController(o, cfg.ReadLimit, cfg.PingPeriod)
	api.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client", c.GetString(clientTokenKey)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}
