// Package memory records notifications instead of sending them. For tests
// and local development.
package memory

import (
	"context"
	"sync"

	"caretrip/internal/notifier"
)

// Notifier records every send. FailInvite and FailWelcome inject errors for
// saga unwind tests.
type Notifier struct {
	mu       sync.Mutex
	invites  []notifier.Invite
	welcomes []notifier.Welcome

	FailInvite  error
	FailWelcome error
}

func New() *Notifier {
	return &Notifier{}
}

func (n *Notifier) SendInvite(ctx context.Context, invite notifier.Invite) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.FailInvite != nil {
		return n.FailInvite
	}
	n.invites = append(n.invites, invite)
	return nil
}

func (n *Notifier) SendWelcome(ctx context.Context, welcome notifier.Welcome) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.FailWelcome != nil {
		return n.FailWelcome
	}
	n.welcomes = append(n.welcomes, welcome)
	return nil
}

// Invites returns a copy of the recorded invite sends.
func (n *Notifier) Invites() []notifier.Invite {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifier.Invite(nil), n.invites...)
}

// Welcomes returns a copy of the recorded welcome sends.
func (n *Notifier) Welcomes() []notifier.Welcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifier.Welcome(nil), n.welcomes...)
}
