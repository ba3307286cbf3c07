package merger

import (
	"fmt"
	"strings"

	"playground-transcript-feed/internal/models"
)

// Scope selects which roster participants contribute transcripts.
type Scope string

const (
	// ScopeAll merges the transcripts of every participant.
	ScopeAll Scope = "all"
	// ScopeLatest merges only the most recently joined participant.
	ScopeLatest Scope = "latest"
)

// ParseScope accepts "all" and "latest", case-insensitively.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeAll, "":
		return ScopeAll, nil
	case ScopeLatest:
		return ScopeLatest, nil
	default:
		return "", fmt.Errorf("unknown merger scope %q", s)
	}
}

// Policy holds the naming and filtering rules of a merger.
//
// Chat sender labels resolve in this order:
//
//  1. the message's explicit sender name
//  2. SelfLabel when the sender is the local participant
//  3. the roster name of the matching remote participant
//  4. AgentLabel when a remote participant matches but has no name
//  5. UnknownLabel when no participant matches
//
// Transcript labels use the same chain minus step 1.
type Policy struct {
	Scope             Scope
	SelfLabel         string
	AgentLabel        string
	UnknownLabel      string
	DropUnmatchedChat bool
}

func DefaultPolicy() Policy {
	return Policy{
		Scope:        ScopeAll,
		SelfLabel:    "You",
		AgentLabel:   "Agent",
		UnknownLabel: "Unknown",
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.Scope == "" {
		p.Scope = def.Scope
	}
	if p.SelfLabel == "" {
		p.SelfLabel = def.SelfLabel
	}
	if p.AgentLabel == "" {
		p.AgentLabel = def.AgentLabel
	}
	if p.UnknownLabel == "" {
		p.UnknownLabel = def.UnknownLabel
	}
	return p
}

func (p Policy) participantLabel(part models.Participant) string {
	if part.IsLocal {
		return p.SelfLabel
	}
	if part.Name != "" {
		return part.Name
	}
	return p.AgentLabel
}

// chatLabel resolves the sender label of a chat message. keep is false when
// the message must be left out of the feed.
func (p Policy) chatLabel(msg models.ChatMessage, r rosterIndex) (name string, isSelf bool, keep bool) {
	sender, matched := r.lookup(msg.SenderIdentity)
	isSelf = matched && sender.IsLocal
	if !matched && p.DropUnmatchedChat {
		return "", false, false
	}

	switch {
	case msg.SenderName != "":
		return msg.SenderName, isSelf, true
	case matched:
		return p.participantLabel(sender), isSelf, true
	default:
		return p.UnknownLabel, false, true
	}
}

type rosterIndex map[string]models.Participant

func indexRoster(roster []models.Participant) rosterIndex {
	idx := make(rosterIndex, len(roster))
	for _, part := range roster {
		if part.Identity == "" {
			continue
		}
		idx[part.Identity] = part
	}
	return idx
}

func (r rosterIndex) lookup(identity string) (models.Participant, bool) {
	if identity == "" {
		return models.Participant{}, false
	}
	part, ok := r[identity]
	return part, ok
}

// contributors returns the participants whose transcripts enter the feed,
// in roster order.
func (p Policy) contributors(roster []models.Participant) []models.Participant {
	if p.Scope != ScopeLatest || len(roster) == 0 {
		return roster
	}
	latest := 0
	for i, part := range roster {
		if part.JoinedAt >= roster[latest].JoinedAt {
			latest = i
		}
	}
	return roster[latest : latest+1]
}
