package store

import "chatsync/internal/model"

// Read-only projections computed on demand from the canonical state. No
// caching; callers get copies and never aliases into the locked maps.

// IsAuthenticated reports whether a session token is present.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tok != ""
}

// User returns the session user, if any.
func (s *Store) User() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

// Token returns the raw session token ("" when logged out).
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tok
}

// Workspace returns the session workspace.
func (s *Store) Workspace() model.Workspace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workspace
}

// UserByID looks a member up in the workspace directory.
func (s *Store) UserByID(id int64) (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

// GroupChannels returns every channel that is not a direct conversation,
// preserving insertion order.
func (s *Store) GroupChannels() []model.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Channel, 0, len(s.channels))
	for _, c := range s.channels {
		if c.Type != model.ChannelSingle {
			out = append(out, c)
		}
	}
	return out
}

// DirectChannels returns single-type channels with Recipient derived as the
// directory entry of the one member who is not the session user.
func (s *Store) DirectChannels() []model.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Channel
	for _, c := range s.channels {
		if c.Type != model.ChannelSingle {
			continue
		}
		cc := c
		if s.user != nil {
			for _, m := range c.Members {
				if m == s.user.ID {
					continue
				}
				if u, ok := s.users[m]; ok {
					r := u
					cc.Recipient = &r
				}
				break
			}
		}
		out = append(out, cc)
	}
	return out
}

// ChannelMessages returns the cached ascending message list for a channel.
func (s *Store) ChannelMessages(channelID int64) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Message(nil), s.messages[channelID]...)
}

// ActiveChannel returns the active channel reference, if set.
func (s *Store) ActiveChannel() (model.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeID == 0 {
		return model.Channel{}, false
	}
	for _, c := range s.channels {
		if c.ID == s.activeID {
			return c, true
		}
	}
	return model.Channel{}, false
}

// ActiveMessages returns the cached messages of the active channel, or nil
// when no channel is active.
func (s *Store) ActiveMessages() []model.Message {
	s.mu.RLock()
	id := s.activeID
	s.mu.RUnlock()
	if id == 0 {
		return nil
	}
	return s.ChannelMessages(id)
}
