package runtime

import (
	"cmp"
	"polyglot-chat/contract"
	"polyglot-chat/domain"
	"polyglot-chat/errors"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
)

var _ contract.ISessionRegistry = (*Registry)(nil)

// Registry is the single owner of the session's participants.
// Registration is the only path by which a Participant comes into or leaves existence.
type Registry struct {
	mu           sync.RWMutex
	Participants map[domain.Handle]domain.Participant
	seq          uint64
}

func NewRegistry() *Registry {
	return &Registry{
		Participants: make(map[domain.Handle]domain.Participant),
	}
}

// Register creates the Participant bound to a live connection handle.
// A handle maps to exactly one Participant, registering it twice is a
// programmer error reported as a registry invariant violation.
func (r *Registry) Register(handle domain.Handle, name, lang string, sink domain.Sink) (domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.Participants[handle]; exists {
		return domain.Participant{}, errors.Registry("register", errors.ErrDuplicateHandle)
	}
	r.seq++
	p := domain.Participant{
		Handle:   handle,
		Name:     name,
		Lang:     lang,
		Seq:      r.seq,
		JoinedAt: time.Now().UTC(),
		Sink:     sink,
	}
	r.Participants[handle] = p
	return p, nil
}

// Unregister removes the participant bound to handle.
// It is idempotent: only the first call for a handle reports true.
func (r *Registry) Unregister(handle domain.Handle) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.Participants[handle]
	if !ok {
		return domain.Participant{}, false
	}
	delete(r.Participants, handle)
	return p, true
}

// ListOthers snapshots every participant except the excluded handle, by join order.
func (r *Registry) ListOthers(excluding domain.Handle) []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	others := lo.Filter(lo.Values(r.Participants), func(p domain.Participant, _ int) bool {
		return p.Handle != excluding
	})
	sortBySeq(others)
	return others
}

// List snapshots every participant by join order.
func (r *Registry) List() []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := lo.Values(r.Participants)
	sortBySeq(all)
	return all
}

func (r *Registry) Find(handle domain.Handle) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.Participants[handle]
	return p, ok
}

// SetLanguage changes the output language of a participant.
// Identity and join order are left untouched.
func (r *Registry) SetLanguage(handle domain.Handle, lang string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.Participants[handle]
	if !ok {
		return errors.ErrUnknownHandle
	}
	p.Lang = lang
	r.Participants[handle] = p
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Participants)
}

func sortBySeq(participants []domain.Participant) {
	slices.SortFunc(participants, func(a, b domain.Participant) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
}
