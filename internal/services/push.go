package services

import (
	"context"
	"fmt"

	"spark-backend/internal/config"
	"spark-backend/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// PushService delivers APNs notifications to partners who are off the app
// when a date invitation lands.
type PushService struct {
	client *apns2.Client
	topic  string
}

// NewPushService creates a push service from config. Returns nil when push is
// not configured, which callers treat as "skip pushes".
func NewPushService(cfg config.APNSConfig) (*PushService, error) {
	if cfg.KeyPath == "" {
		return nil, nil
	}

	authKey, err := token.AuthKeyFromFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs auth key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &PushService{client: client, topic: cfg.Topic}, nil
}

// PushInvite notifies a partner that a date invitation is waiting. Failures
// are logged only; the invitation itself is already stored and will surface
// over the feed when the partner returns.
func (s *PushService) PushInvite(ctx context.Context, partner *models.User, sessionID string) {
	if partner.PushToken == nil || *partner.PushToken == "" {
		return
	}

	p := payload.NewPayload().
		AlertTitle("Date invitation").
		AlertBody("Your partner started a guided date. Join in!").
		Custom("session_id", sessionID).
		Sound("default")

	notification := &apns2.Notification{
		DeviceToken: *partner.PushToken,
		Topic:       s.topic,
		Payload:     p,
	}

	res, err := s.client.PushWithContext(ctx, notification)
	if err != nil {
		log.Error().Err(err).Str("user_id", partner.ID).Msg("Failed to push invite")
		return
	}
	if !res.Sent() {
		log.Warn().
			Str("user_id", partner.ID).
			Int("status", res.StatusCode).
			Str("reason", res.Reason).
			Msg("Invite push rejected")
	}
}
