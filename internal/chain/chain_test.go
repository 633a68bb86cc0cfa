package chain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leavedesk/internal/chain"
	"leavedesk/internal/domain"
)

func record(status string) domain.LeaveRecord {
	return domain.LeaveRecord{
		ID:                           "1",
		LeaveType:                    "CASUAL",
		Status:                       status,
		ActingOfficerEmail:           "acting@corp.lk",
		ActingOfficerName:            "Kamal",
		ActingOfficerStatus:          "APPROVED",
		ActingOfficerApprovedAt:      "2024-01-02T09:00:00",
		SupervisingOfficerEmail:      "sup@corp.lk",
		SupervisingOfficerName:       "Nimali",
		SupervisingOfficerStatus:     "PENDING",
		ApprovalOfficerEmail:         "NONE",
		ApprovalOfficerName:          "",
		ApprovalOfficerStatus:        "NOT_ASSIGNED",
		SupervisingOfficerApprovedAt: "",
	}
}

func TestRenderPendingChain(t *testing.T) {
	c := chain.Render(domain.FromRecord(record("PENDING_SUPERVISING_OFFICER")), nil)

	assert.Equal(t, chain.ToneSuccess, c.Nodes[0].Tone)
	assert.Equal(t, chain.IconCheck, c.Nodes[0].Icon)
	assert.Equal(t, "Approved", c.Nodes[0].Label)

	assert.Equal(t, chain.TonePrimary, c.Nodes[1].Tone)
	assert.Equal(t, chain.IconClock, c.Nodes[1].Icon)

	assert.Equal(t, "Not Assigned", c.Nodes[2].Name)
	assert.Equal(t, domain.SlotNotAssigned, c.Nodes[2].Status)
	assert.Equal(t, chain.IconBan, c.Nodes[2].Icon)

	cur, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, domain.RoleSupervising, cur.Role)
}

func TestCancelledOverridesOfficerOutcome(t *testing.T) {
	rec := record("PENDING_SUPERVISING_OFFICER")
	rec.IsCancelled = true
	c := chain.Render(domain.FromRecord(rec), nil)

	for _, n := range c.Nodes[:2] {
		assert.Equal(t, "Cancelled", n.Label, n.Role)
		assert.Equal(t, chain.ToneSecondary, n.Tone, n.Role)
		assert.Equal(t, chain.IconXCircle, n.Icon, n.Role)
	}
	// unassigned keeps its own text, icon and tone
	assert.Equal(t, "N/A", c.Nodes[2].Label)
	assert.Equal(t, chain.IconBan, c.Nodes[2].Icon)
	assert.Equal(t, chain.ToneMuted, c.Nodes[2].Tone)
	_, ok := c.Current()
	assert.False(t, ok)
}

func TestCancelledViaStatusString(t *testing.T) {
	c := chain.Render(domain.FromRecord(record("CANCELLED_BY_EMPLOYEE")), nil)
	assert.Equal(t, "Cancelled", c.Nodes[0].Label)
}

func TestApprovedNeedsTimestamp(t *testing.T) {
	rec := record("PENDING_SUPERVISING_OFFICER")
	rec.ActingOfficerApprovedAt = ""
	c := chain.Render(domain.FromRecord(rec), nil)
	assert.Equal(t, chain.ToneMuted, c.Nodes[0].Tone)
	assert.Equal(t, chain.IconClock, c.Nodes[0].Icon)
	assert.Equal(t, "Waiting", c.Nodes[0].Label)
}

func TestRejectedNode(t *testing.T) {
	rec := record("REJECTED")
	rec.SupervisingOfficerStatus = "REJECTED"
	c := chain.Render(domain.FromRecord(rec), nil)
	assert.Equal(t, chain.ToneDanger, c.Nodes[1].Tone)
	assert.Equal(t, chain.IconCross, c.Nodes[1].Icon)
}

func TestMissingNameIsUnassigned(t *testing.T) {
	rec := record("PENDING_ACTING_OFFICER")
	rec.ActingOfficerName = ""
	c := chain.Render(domain.FromRecord(rec), nil)
	assert.False(t, c.Nodes[0].HasOfficer)
	assert.Equal(t, "Not Assigned", c.Nodes[0].DisplayName)
}

func TestHonorificAndTruncation(t *testing.T) {
	rec := record("PENDING_SUPERVISING_OFFICER")
	rec.SupervisingOfficerName = "Nimali Wickramasinghe"
	dir := chain.Profiles{
		"Kamal":                 {Gender: "MALE"},
		"Nimali Wickramasinghe": {Gender: "FEMALE", MaritalStatus: "MARRIED"},
	}
	c := chain.Render(domain.FromRecord(rec), dir)

	assert.Equal(t, "Mr. Kamal", c.Nodes[0].DisplayName)
	assert.Equal(t, "Mrs. Nimali Wickramasinghe", c.Nodes[1].Title)
	assert.Equal(t, "Mrs. Nimali Wic…", c.Nodes[1].DisplayName)
	assert.Equal(t, "Nimali Wickramasinghe", c.Nodes[1].Name)
}

func TestRendererNameMax(t *testing.T) {
	c := chain.Renderer{NameMax: 3}.Render(domain.FromRecord(record("APPROVED")))
	assert.Equal(t, "Kam…", c.Nodes[0].DisplayName)
}

func TestRenderNeverPanicsOnEmptyRecord(t *testing.T) {
	c := chain.Render(domain.FromRecord(domain.LeaveRecord{}), nil)
	for _, n := range c.Nodes {
		assert.Equal(t, "Not Assigned", n.Name)
	}
}

func TestPlainLine(t *testing.T) {
	c := chain.Render(domain.FromRecord(record("PENDING_SUPERVISING_OFFICER")), nil)
	assert.Equal(t, "✔ Kamal → ◷ Nimali → ⊘ Not Assigned", chain.Plain(c))
	assert.NotEmpty(t, chain.DefaultStyles().Line(c))
}
