// Package directory resolves free-text queries to members, annotated with
// their relation to the caller.
package directory

import (
	"context"
	"strings"

	"alumninexus/server/internal/apperr"
	"alumninexus/server/internal/models"
	"alumninexus/server/internal/repository"
)

const (
	SearchLimit    = 20
	SuggestedLimit = 100
)

type Service struct {
	profiles    repository.ProfileRepository
	connections repository.ConnectionRepository
}

func NewService(profiles repository.ProfileRepository, connections repository.ConnectionRepository) *Service {
	return &Service{profiles: profiles, connections: connections}
}

// SearchUsers matches term case-insensitively against name and username.
func (s *Service) SearchUsers(ctx context.Context, p models.Principal, term string) ([]models.UserSearchResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, apperr.Invalid("search term is required")
	}

	profiles, err := s.profiles.Search(ctx, p.UserID, term, SearchLimit)
	if err != nil {
		return nil, apperr.Backend("search users", err)
	}
	return s.annotate(ctx, p, profiles)
}

// GetAllUsers lists members for the suggested connections view, online
// members first, then by name.
func (s *Service) GetAllUsers(ctx context.Context, p models.Principal) ([]models.UserSearchResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	profiles, err := s.profiles.List(ctx, p.UserID, SuggestedLimit)
	if err != nil {
		return nil, apperr.Backend("list users", err)
	}
	return s.annotate(ctx, p, profiles)
}

// GetProfile returns a member profile. An empty id means the caller's own.
func (s *Service) GetProfile(ctx context.Context, p models.Principal, id string) (*models.Profile, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		id = p.UserID
	}
	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Backend("load profile", err)
	}
	return profile, nil
}

func (s *Service) annotate(ctx context.Context, p models.Principal, profiles []models.Profile) ([]models.UserSearchResult, error) {
	ids := make([]string, 0, len(profiles))
	for _, pr := range profiles {
		if pr.ID != p.UserID {
			ids = append(ids, pr.ID)
		}
	}

	rows, err := s.connections.ListBetween(ctx, p.UserID, ids)
	if err != nil {
		return nil, apperr.Backend("load relations", err)
	}
	latest := make(map[string]models.Connection, len(rows))
	for _, c := range rows {
		other := c.Other(p.UserID)
		if prev, ok := latest[other]; !ok || !c.UpdatedAt.Before(prev.UpdatedAt) {
			latest[other] = c
		}
	}

	results := make([]models.UserSearchResult, 0, len(profiles))
	for _, pr := range profiles {
		if pr.ID == p.UserID {
			continue
		}
		status := models.RelationNone
		if c, ok := latest[pr.ID]; ok {
			status = relationOf(c.Status)
		}
		results = append(results, models.UserSearchResult{
			ID:               pr.ID,
			FullName:         pr.FullName,
			AvatarURL:        pr.AvatarURL,
			Username:         pr.Username,
			Bio:              pr.Bio,
			IsOnline:         pr.IsOnline,
			ConnectionStatus: status,
		})
	}
	return results, nil
}

func relationOf(status models.ConnectionStatus) models.RelationStatus {
	if status == models.ConnectionAccepted {
		return models.RelationAccepted
	}
	return models.RelationPending
}
