package connections

import (
	"context"
	"errors"
	"strings"
	"time"

	"alumninexus/server/internal/apperr"
	"alumninexus/server/internal/models"
	"alumninexus/server/internal/repository"

	"github.com/google/uuid"
	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("connections")

// Service runs connection workflows against the backend on behalf of a
// principal. It holds no per-user state.
type Service struct {
	connections repository.ConnectionRepository
	profiles    repository.ProfileRepository
	now         func() time.Time
}

func NewService(connections repository.ConnectionRepository, profiles repository.ProfileRepository) *Service {
	return &Service{
		connections: connections,
		profiles:    profiles,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// LoadConnections returns the accepted connections of p.
func (s *Service) LoadConnections(ctx context.Context, p models.Principal) ([]models.ConnectionView, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	views, err := s.connections.ListAccepted(ctx, p.UserID)
	if err != nil {
		return nil, apperr.Backend("load connections", err)
	}
	if views == nil {
		views = []models.ConnectionView{}
	}
	return views, nil
}

// LoadConnectionRequests returns pending requests addressed to p, newest
// first, with the requester's profile summary.
func (s *Service) LoadConnectionRequests(ctx context.Context, p models.Principal) ([]models.ConnectionRequest, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	pending, err := s.connections.ListPendingFor(ctx, p.UserID)
	if err != nil {
		return nil, apperr.Backend("load connection requests", err)
	}

	ids := make([]string, 0, len(pending))
	for _, c := range pending {
		ids = append(ids, c.RequesterID)
	}
	profiles, err := s.profiles.ListByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Backend("load requester profiles", err)
	}
	byID := make(map[string]models.Profile, len(profiles))
	for _, pr := range profiles {
		byID[pr.ID] = pr
	}

	requests := make([]models.ConnectionRequest, 0, len(pending))
	for _, c := range pending {
		req := models.ConnectionRequest{
			ID:          c.ID,
			RequesterID: c.RequesterID,
			RecipientID: c.RecipientID,
			Status:      c.Status,
			CreatedAt:   c.CreatedAt,
			Requester:   models.RequesterSummary{FullName: "Unknown User"},
		}
		if pr, ok := byID[c.RequesterID]; ok {
			req.Requester = models.RequesterSummary{
				FullName:  pr.DisplayName(),
				AvatarURL: pr.AvatarURL,
				Username:  pr.Username,
			}
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// SendConnectionRequest creates a pending connection from p to recipientID.
// Any existing row for the pair, in either direction and any status, makes
// it fail with ErrDuplicateRequest.
func (s *Service) SendConnectionRequest(ctx context.Context, p models.Principal, recipientID string) (*models.Connection, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return nil, apperr.Invalid("recipient is required")
	}
	if recipientID == p.UserID {
		return nil, apperr.Invalid("you cannot connect with yourself")
	}

	exists, err := s.profiles.Exists(ctx, recipientID)
	if err != nil {
		return nil, apperr.Backend("check recipient", err)
	}
	if !exists {
		return nil, apperr.NotFound("recipient")
	}

	_, err = s.connections.FindBetween(ctx, p.UserID, recipientID)
	switch {
	case err == nil:
		return nil, apperr.ErrDuplicateRequest
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, apperr.Backend("check existing connection", err)
	}

	now := s.now()
	connection := &models.Connection{
		ID:          uuid.NewString(),
		RequesterID: p.UserID,
		RecipientID: recipientID,
		Status:      models.ConnectionPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.connections.Create(ctx, connection); err != nil {
		return nil, apperr.Backend("create connection request", err)
	}
	log.Infof("connection request %s: %s -> %s", connection.ID, p.UserID, recipientID)
	return connection, nil
}

// AcceptConnectionRequest marks a pending request addressed to p accepted.
func (s *Service) AcceptConnectionRequest(ctx context.Context, p models.Principal, requestID string) error {
	connection, err := s.pendingFor(ctx, p, requestID)
	if err != nil {
		return err
	}
	if err := s.connections.UpdateStatus(ctx, connection.ID, models.ConnectionAccepted, s.now()); err != nil {
		return apperr.Backend("accept connection request", err)
	}
	log.Infof("connection request %s accepted by %s", connection.ID, p.UserID)
	return nil
}

// RejectConnectionRequest deletes a pending request addressed to p.
func (s *Service) RejectConnectionRequest(ctx context.Context, p models.Principal, requestID string) error {
	connection, err := s.pendingFor(ctx, p, requestID)
	if err != nil {
		return err
	}
	if err := s.connections.Delete(ctx, connection.ID); err != nil {
		return apperr.Backend("reject connection request", err)
	}
	log.Infof("connection request %s rejected by %s", connection.ID, p.UserID)
	return nil
}

// pendingFor loads a request that p may act on. Requests addressed to
// someone else are reported as missing.
func (s *Service) pendingFor(ctx context.Context, p models.Principal, requestID string) (*models.Connection, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(requestID) == "" {
		return nil, apperr.Invalid("request id is required")
	}
	connection, err := s.connections.GetByID(ctx, requestID)
	if err != nil {
		return nil, apperr.Backend("load connection request", err)
	}
	if connection.RecipientID != p.UserID || connection.Status != models.ConnectionPending {
		return nil, apperr.NotFound("connection request")
	}
	return connection, nil
}
