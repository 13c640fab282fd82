package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/app/orch"
	"github.com/dkeye/Consult/internal/domain"
)

const defaultMeetingTTL = 24 * time.Hour

type handlers struct {
	orch       *orch.Orchestrator
	backend    Backend
	iceServers []webrtc.ICEServer
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Stats())
}

func (h *handlers) rooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Rooms.List())
}

func (h *handlers) ice(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.iceServers})
}

type createMeetingRequest struct {
	RoomName         string `json:"roomName" binding:"required"`
	Password         string `json:"password" binding:"required"`
	ExpiresInMinutes int    `json:"expiresInMinutes" binding:"omitempty,min=1"`
}

func (h *handlers) createMeeting(c *gin.Context) {
	var req createMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "roomName and password are required"})
		return
	}
	room, err := domain.ParseRoomName(req.RoomName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ttl := defaultMeetingTTL
	if req.ExpiresInMinutes > 0 {
		ttl = time.Duration(req.ExpiresInMinutes) * time.Minute
	}
	expiresAt := time.Now().Add(ttl).UTC()

	m, err := h.backend.CreateMeeting(c.Request.Context(), room, req.Password, &expiresAt)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("room", string(room)).Msg("create meeting")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save meeting"})
		return
	}
	log.Info().Str("module", "adapters.http").Str("room", string(room)).Time("expires_at", expiresAt).Msg("meeting provisioned")
	c.JSON(http.StatusCreated, gin.H{
		"roomName":  m.RoomName,
		"expiresAt": m.ExpiresAt,
		"message":   "Meeting saved successfully",
	})
}

func (h *handlers) listMeetings(c *gin.Context) {
	list, err := h.backend.ListMeetings(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("list meetings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list meetings"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handlers) meetingMessages(c *gin.Context) {
	msgs, err := h.backend.ChatMessages(c.Request.Context(), domain.RoomName(c.Param("room")))
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("chat messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load messages"})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

type consentRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Date      string `json:"date" binding:"required"`
	Email     string `json:"email" binding:"omitempty,email"`
	RoomName  string `json:"roomName"`
}

// submitConsent stores the form. When it names a room, the issued join token
// is returned and also kept in the cookie session for the signaling socket.
func (h *handlers) submitConsent(c *gin.Context) {
	var req consentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "All fields are required"})
		return
	}
	id, token, err := h.backend.SubmitConsent(c.Request.Context(), domain.Consent{
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		Signature:  req.Signature,
		SignedDate: req.Date,
		Email:      strings.TrimSpace(req.Email),
		RoomName:   domain.RoomName(strings.TrimSpace(req.RoomName)),
	})
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("submit consent")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save consent"})
		return
	}

	resp := gin.H{"id": id, "message": "Consent form submitted successfully"}
	if token != "" {
		resp["joinToken"] = token
		s := sessions.Default(c)
		s.Set(joinTokenKey, token)
		if err := s.Save(); err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) listConsents(c *gin.Context) {
	list, err := h.backend.ListConsents(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("list consents")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list consents"})
		return
	}
	c.JSON(http.StatusOK, list)
}
