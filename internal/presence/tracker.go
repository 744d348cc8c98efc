package presence

import (
	"sync"

	"alumninexus/server/internal/changefeed"
	"alumninexus/server/internal/models"
	"alumninexus/server/internal/notify"

	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("presence")

// StatusChange is the payload of a contact_status event.
type StatusChange struct {
	ContactID string                `json:"contactId"`
	Status    models.PresenceStatus `json:"status"`
}

// Tracker holds the rendered contact list of one session and keeps its
// presence column current from profile updates.
type Tracker struct {
	sink notify.Sink

	mu       sync.RWMutex
	contacts []models.Contact
}

func NewTracker(sink notify.Sink) *Tracker {
	return &Tracker{sink: sink, contacts: []models.Contact{}}
}

// SetContacts replaces the contact list and emits it.
func (t *Tracker) SetContacts(contacts []models.Contact) {
	t.mu.Lock()
	t.contacts = append([]models.Contact{}, contacts...)
	t.mu.Unlock()
	t.sink.Emit(notify.EventContactsUpdated, contacts)
}

func (t *Tracker) Contacts() []models.Contact {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]models.Contact{}, t.contacts...)
}

// HandleProfileUpdate patches the status of the direct contacts matching the
// updated profile. Nothing else on the contact changes.
func (t *Tracker) HandleProfileUpdate(e changefeed.Event) {
	var profile models.Profile
	if err := e.DecodeNew(&profile); err != nil {
		log.Warningf("undecodable profile update: %v", err)
		return
	}
	status := profile.PresenceStatus()

	t.mu.Lock()
	changed := false
	for i := range t.contacts {
		c := &t.contacts[i]
		if c.IsGroup || c.ID != profile.ID || c.Status == status {
			continue
		}
		c.Status = status
		changed = true
	}
	t.mu.Unlock()

	if changed {
		t.sink.Emit(notify.EventContactStatus, StatusChange{ContactID: profile.ID, Status: status})
	}
}
