// Package memory implements the repository interfaces over in-process maps.
// It enforces the same uniqueness rules as the Postgres schema and is used by
// service, session and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"alumninexus/server/internal/apperr"
	"alumninexus/server/internal/models"
	"alumninexus/server/internal/repository"

	"github.com/google/uuid"
)

type Store struct {
	mu            sync.Mutex
	profiles      map[string]models.Profile
	connections   map[string]models.Connection
	conversations map[string]models.Conversation
	participants  []models.ConversationParticipant
	direct        map[[2]string]string
	messages      []models.Message
	failures      map[string]error

	// Hooks run outside the lock.
	OnMessageCreated   func(models.Message)
	BeforeCreateDirect func(creatorID, targetID string)
}

func New() *Store {
	return &Store{
		profiles:      make(map[string]models.Profile),
		connections:   make(map[string]models.Connection),
		conversations: make(map[string]models.Conversation),
		direct:        make(map[[2]string]string),
		failures:      make(map[string]error),
	}
}

// FailOn makes the named operation (for example "messages.Create") return err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *Store) Heal(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, op)
}

func (s *Store) failure(op string) error {
	return s.failures[op]
}

func (s *Store) Profiles() repository.ProfileRepository           { return &profiles{s} }
func (s *Store) Connections() repository.ConnectionRepository     { return &connections{s} }
func (s *Store) Conversations() repository.ConversationRepository { return &conversations{s} }
func (s *Store) Messages() repository.MessageRepository           { return &messages{s} }

// AddProfile seeds a profile.
func (s *Store) AddProfile(p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

// Profile returns a copy of the stored profile.
func (s *Store) Profile(id string) (models.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	return p, ok
}

// CountConversations and CountParticipants expose row counts for assertions.
func (s *Store) CountConversations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

func (s *Store) CountParticipants() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants)
}

// AddDirectConversation seeds a direct conversation without a pair index row,
// like rows created before the index existed.
func (s *Store) AddDirectConversation(id, a, b string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[id] = models.Conversation{ID: id, CreatedBy: a, CreatedAt: at, UpdatedAt: at}
	s.participants = append(s.participants,
		models.ConversationParticipant{ID: uuid.NewString(), ConversationID: id, UserID: a, JoinedAt: at, Role: models.RoleMember},
		models.ConversationParticipant{ID: uuid.NewString(), ConversationID: id, UserID: b, JoinedAt: at, Role: models.RoleMember},
	)
}

type profiles struct{ s *Store }

func (r *profiles) Create(ctx context.Context, p *models.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("profiles.Create"); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	r.s.profiles[p.ID] = *p
	return nil
}

func (r *profiles) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("profiles.GetByID"); err != nil {
		return nil, err
	}
	p, ok := r.s.profiles[id]
	if !ok {
		return nil, apperr.NotFound("profile")
	}
	return &p, nil
}

func (r *profiles) Exists(ctx context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("profiles.Exists"); err != nil {
		return false, err
	}
	_, ok := r.s.profiles[id]
	return ok, nil
}

func (r *profiles) ListByIDs(ctx context.Context, ids []string) ([]models.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("profiles.ListByIDs"); err != nil {
		return nil, err
	}
	out := []models.Profile{}
	for _, id := range ids {
		if p, ok := r.s.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *profiles) Search(ctx context.Context, excludeID, term string, limit int) ([]models.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("profiles.Search"); err != nil {
		return nil, err
	}
	needle := strings.ToLower(term)
	out := []models.Profile{}
	for _, p := range r.s.profiles {
		if p.ID == excludeID {
			continue
		}
		username := ""
		if p.Username != nil {
			username = *p.Username
		}
		if strings.Contains(strings.ToLower(p.FullName), needle) || strings.Contains(strings.ToLower(username), needle) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *profiles) List(ctx context.Context, excludeID string, limit int) ([]models.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("profiles.List"); err != nil {
		return nil, err
	}
	out := []models.Profile{}
	for _, p := range r.s.profiles {
		if p.ID != excludeID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsOnline != out[j].IsOnline {
			return out[i].IsOnline
		}
		return out[i].FullName < out[j].FullName
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *profiles) SetOnline(ctx context.Context, id string, online bool, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("profiles.SetOnline"); err != nil {
		return err
	}
	p, ok := r.s.profiles[id]
	if !ok {
		return nil
	}
	p.IsOnline = online
	p.LastSeen = &at
	r.s.profiles[id] = p
	return nil
}

func (r *profiles) Touch(ctx context.Context, id string, at time.Time) error {
	return r.SetOnline(ctx, id, true, at)
}

func (r *profiles) MarkStaleOffline(ctx context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("profiles.MarkStaleOffline"); err != nil {
		return 0, err
	}
	var n int64
	for id, p := range r.s.profiles {
		if p.IsOnline && (p.LastSeen == nil || p.LastSeen.Before(cutoff)) {
			p.IsOnline = false
			r.s.profiles[id] = p
			n++
		}
	}
	return n, nil
}

type connections struct{ s *Store }

func (r *connections) Create(ctx context.Context, c *models.Connection) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("connections.Create"); err != nil {
		return err
	}
	for _, existing := range r.s.connections {
		if existing.Involves(c.RequesterID) && existing.Other(c.RequesterID) == c.RecipientID {
			return apperr.ErrDuplicateRequest
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	r.s.connections[c.ID] = *c
	return nil
}

func (r *connections) GetByID(ctx context.Context, id string) (*models.Connection, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("connections.GetByID"); err != nil {
		return nil, err
	}
	c, ok := r.s.connections[id]
	if !ok {
		return nil, apperr.NotFound("connection")
	}
	return &c, nil
}

func (r *connections) FindBetween(ctx context.Context, a, b string) (*models.Connection, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("connections.FindBetween"); err != nil {
		return nil, err
	}
	var found *models.Connection
	for _, c := range r.s.connections {
		c := c
		if c.Involves(a) && c.Other(a) == b {
			if found == nil || c.UpdatedAt.After(found.UpdatedAt) {
				found = &c
			}
		}
	}
	if found == nil {
		return nil, apperr.NotFound("connection")
	}
	return found, nil
}

func (r *connections) ListBetween(ctx context.Context, userID string, otherIDs []string) ([]models.Connection, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("connections.ListBetween"); err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(otherIDs))
	for _, id := range otherIDs {
		wanted[id] = true
	}
	out := []models.Connection{}
	for _, c := range r.s.connections {
		if c.Involves(userID) && wanted[c.Other(userID)] {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (r *connections) ListPendingFor(ctx context.Context, recipientID string) ([]models.Connection, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("connections.ListPendingFor"); err != nil {
		return nil, err
	}
	out := []models.Connection{}
	for _, c := range r.s.connections {
		if c.RecipientID == recipientID && c.Status == models.ConnectionPending {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *connections) UpdateStatus(ctx context.Context, id string, status models.ConnectionStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("connections.UpdateStatus"); err != nil {
		return err
	}
	c, ok := r.s.connections[id]
	if !ok {
		return apperr.NotFound("connection")
	}
	c.Status = status
	c.UpdatedAt = at
	r.s.connections[id] = c
	return nil
}

func (r *connections) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("connections.Delete"); err != nil {
		return err
	}
	if _, ok := r.s.connections[id]; !ok {
		return apperr.NotFound("connection")
	}
	delete(r.s.connections, id)
	return nil
}

func (r *connections) ListAccepted(ctx context.Context, userID string) ([]models.ConnectionView, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("connections.ListAccepted"); err != nil {
		return nil, err
	}
	out := []models.ConnectionView{}
	for _, c := range r.s.connections {
		if c.Status != models.ConnectionAccepted || !c.Involves(userID) {
			continue
		}
		p, ok := r.s.profiles[c.Other(userID)]
		if !ok {
			continue
		}
		out = append(out, models.ConnectionView{
			ConnectionID:    c.ID,
			ConnectedUserID: p.ID,
			FullName:        p.FullName,
			AvatarURL:       p.AvatarURL,
			IsOnline:        p.IsOnline,
			Status:          c.Status,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

type conversations struct{ s *Store }

func (r *conversations) memberships(userID string, directOnly bool) []models.ConversationParticipant {
	out := []models.ConversationParticipant{}
	for _, p := range r.s.participants {
		if p.UserID != userID {
			continue
		}
		if directOnly && r.s.conversations[p.ConversationID].IsGroup {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.s.conversations[out[i].ConversationID].UpdatedAt.After(r.s.conversations[out[j].ConversationID].UpdatedAt)
	})
	return out
}

func (r *conversations) ListDirectMemberships(ctx context.Context, userID string) ([]models.ConversationParticipant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("conversations.ListDirectMemberships"); err != nil {
		return nil, err
	}
	return r.memberships(userID, true), nil
}

func (r *conversations) ListMemberships(ctx context.Context, userID string) ([]models.ConversationParticipant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("conversations.ListMemberships"); err != nil {
		return nil, err
	}
	return r.memberships(userID, false), nil
}

func (r *conversations) ListOtherParticipants(ctx context.Context, conversationID, excludeUserID string) ([]models.ConversationParticipant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("conversations.ListOtherParticipants"); err != nil {
		return nil, err
	}
	out := []models.ConversationParticipant{}
	for _, p := range r.s.participants {
		if p.ConversationID == conversationID && p.UserID != excludeUserID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *conversations) ListByIDs(ctx context.Context, ids []string) ([]models.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("conversations.ListByIDs"); err != nil {
		return nil, err
	}
	out := []models.Conversation{}
	for _, id := range ids {
		if c, ok := r.s.conversations[id]; ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *conversations) FindDirect(ctx context.Context, a, b string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("conversations.FindDirect"); err != nil {
		return "", err
	}
	low, high := models.OrderedPair(a, b)
	id, ok := r.s.direct[[2]string{low, high}]
	if !ok {
		return "", apperr.NotFound("direct conversation")
	}
	return id, nil
}

func (r *conversations) CreateDirect(ctx context.Context, creatorID, targetID string, at time.Time) (*models.Conversation, error) {
	if hook := r.s.BeforeCreateDirect; hook != nil {
		hook(creatorID, targetID)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("conversations.CreateDirect"); err != nil {
		return nil, err
	}
	low, high := models.OrderedPair(creatorID, targetID)
	key := [2]string{low, high}
	if _, ok := r.s.direct[key]; ok {
		return nil, repository.ErrPairExists
	}
	conv := models.Conversation{ID: uuid.NewString(), CreatedBy: creatorID, CreatedAt: at, UpdatedAt: at}
	r.s.conversations[conv.ID] = conv
	r.s.direct[key] = conv.ID
	r.s.participants = append(r.s.participants,
		models.ConversationParticipant{ID: uuid.NewString(), ConversationID: conv.ID, UserID: creatorID, JoinedAt: at, Role: models.RoleMember},
		models.ConversationParticipant{ID: uuid.NewString(), ConversationID: conv.ID, UserID: targetID, JoinedAt: at, Role: models.RoleMember},
	)
	return &conv, nil
}

func (r *conversations) CreateGroup(ctx context.Context, conv *models.Conversation, memberIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("conversations.CreateGroup"); err != nil {
		return err
	}
	r.s.conversations[conv.ID] = *conv
	r.s.participants = append(r.s.participants, models.ConversationParticipant{
		ID: uuid.NewString(), ConversationID: conv.ID, UserID: conv.CreatedBy, JoinedAt: conv.CreatedAt, Role: models.RoleAdmin,
	})
	for _, id := range memberIDs {
		r.s.participants = append(r.s.participants, models.ConversationParticipant{
			ID: uuid.NewString(), ConversationID: conv.ID, UserID: id, JoinedAt: conv.CreatedAt, Role: models.RoleMember,
		})
	}
	return nil
}

func (r *conversations) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("conversations.IsParticipant"); err != nil {
		return false, err
	}
	for _, p := range r.s.participants {
		if p.ConversationID == conversationID && p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

type messages struct{ s *Store }

func (r *messages) Create(ctx context.Context, m *models.Message) error {
	r.s.mu.Lock()
	if err := r.s.failure("messages.Create"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	r.s.messages = append(r.s.messages, *m)
	if conv, ok := r.s.conversations[m.ConversationID]; ok {
		conv.UpdatedAt = m.CreatedAt
		r.s.conversations[m.ConversationID] = conv
	}
	hook := r.s.OnMessageCreated
	r.s.mu.Unlock()

	if hook != nil {
		hook(*m)
	}
	return nil
}

func (r *messages) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("messages.ListByConversation"); err != nil {
		return nil, err
	}
	out := []models.Message{}
	for _, m := range r.s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *messages) LastByConversations(ctx context.Context, ids []string) (map[string]models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("messages.LastByConversations"); err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	last := make(map[string]models.Message)
	for _, m := range r.s.messages {
		if !wanted[m.ConversationID] {
			continue
		}
		if prev, ok := last[m.ConversationID]; !ok || !m.CreatedAt.Before(prev.CreatedAt) {
			last[m.ConversationID] = m
		}
	}
	return last, nil
}

func (r *messages) CountFromOthers(ctx context.Context, ids []string, userID string) (map[string]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("messages.CountFromOthers"); err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	counts := make(map[string]int64)
	for _, m := range r.s.messages {
		if wanted[m.ConversationID] && m.SenderID != userID {
			counts[m.ConversationID]++
		}
	}
	return counts, nil
}
