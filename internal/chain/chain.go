// Package chain turns a leave's three officer slots into a display chain.
package chain

import (
	"strings"

	"leavedesk/internal/domain"
)

// NameMax is the number of runes shown before a name is truncated.
const NameMax = 15

// Tone is the colour family a node is drawn in.
type Tone string

const (
	ToneMuted     Tone = "muted"
	ToneSecondary Tone = "secondary"
	ToneSuccess   Tone = "success"
	ToneDanger    Tone = "danger"
	TonePrimary   Tone = "primary"
)

// Icon names follow the lucide set used by the web views.
type Icon string

const (
	IconBan     Icon = "ban"
	IconXCircle Icon = "x-circle"
	IconCheck   Icon = "check"
	IconCross   Icon = "x"
	IconClock   Icon = "clock"
)

// Directory resolves an employee display name to the profile used for honorifics.
type Directory interface {
	Profile(name string) (domain.Profile, bool)
}

// Profiles is a Directory backed by a map.
type Profiles map[string]domain.Profile

func (p Profiles) Profile(name string) (domain.Profile, bool) {
	v, ok := p[name]
	return v, ok
}

type Node struct {
	Role        domain.Role       `json:"role"`
	RoleLabel   string            `json:"roleLabel"`
	HasOfficer  bool              `json:"hasOfficer"`
	Email       string            `json:"email,omitempty"`
	Name        string            `json:"name"`
	DisplayName string            `json:"displayName"`
	Title       string            `json:"title"`
	Status      domain.SlotStatus `json:"status"`
	Icon        Icon              `json:"icon"`
	Tone        Tone              `json:"tone"`
	Label       string            `json:"label"`
}

type Chain struct {
	Nodes   [3]Node `json:"nodes"`
	Pending string  `json:"pending,omitempty"`
}

// Current returns the node waiting for action, if any.
func (c Chain) Current() (Node, bool) {
	for _, n := range c.Nodes {
		if string(n.Role) == c.Pending {
			return n, true
		}
	}
	return Node{}, false
}

// Renderer holds the lookups shared by every chain in a list.
type Renderer struct {
	Directory Directory
	NameMax   int
}

// Render builds the chain for l. dir may be nil.
func Render(l domain.Leave, dir Directory) Chain {
	return Renderer{Directory: dir}.Render(l)
}

func (r Renderer) Render(l domain.Leave) Chain {
	limit := r.NameMax
	if limit <= 0 {
		limit = NameMax
	}
	var c Chain
	for i, role := range domain.Roles {
		c.Nodes[i] = renderNode(l.Slot(role), l.Cancelled(), r.Directory, limit)
	}
	if role, ok := l.Status.PendingRole(); ok {
		c.Pending = string(role)
	}
	return c
}

func renderNode(s domain.Slot, cancelled bool, dir Directory, nameMax int) Node {
	n := Node{
		Role:      s.Role,
		RoleLabel: s.Role.Label(),
		Status:    s.Status,
	}
	if !s.HasOfficer() {
		n.Name = "Not Assigned"
		n.DisplayName = n.Name
		n.Title = n.Name
		n.Status = domain.SlotNotAssigned
		n.Tone, n.Icon, n.Label = ToneMuted, IconBan, "N/A"
		return n
	}
	n.HasOfficer = true
	n.Email = s.Email
	n.Name = s.Name
	n.Title = withHonorific(s.Name, dir)
	n.DisplayName = Truncate(n.Title, nameMax)
	n.Tone, n.Icon, n.Label = decide(s, cancelled)
	return n
}

// decide is the status decision table. Order matters: cancellation hides
// individual officer outcomes.
func decide(s domain.Slot, cancelled bool) (Tone, Icon, string) {
	switch {
	case cancelled:
		return ToneSecondary, IconXCircle, "Cancelled"
	case s.Status == domain.SlotApproved && s.ApprovedAt != nil:
		return ToneSuccess, IconCheck, "Approved"
	case s.Status == domain.SlotRejected:
		return ToneDanger, IconCross, "Rejected"
	case s.Status == domain.SlotPending:
		return TonePrimary, IconClock, "Pending"
	}
	return ToneMuted, IconClock, "Waiting"
}

func withHonorific(name string, dir Directory) string {
	if dir == nil {
		return name
	}
	p, ok := dir.Profile(name)
	if !ok {
		return name
	}
	if h := p.Honorific(); h != "" {
		return h + " " + name
	}
	return name
}

// Truncate shortens s to limit runes followed by an ellipsis.
func Truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if limit <= 0 || len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "…"
}
