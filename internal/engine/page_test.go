package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"leavedesk/internal/domain"
	"leavedesk/internal/engine"
)

func TestPaginate(t *testing.T) {
	items := make([]int, 37)
	for i := range items {
		items[i] = i
	}
	var sizes []int
	for p := 1; p <= 4; p++ {
		pg := engine.Paginate(items, p, 10)
		assert.Equal(t, 4, pg.TotalPages)
		sizes = append(sizes, len(pg.Items))
	}
	assert.Equal(t, []int{10, 10, 10, 7}, sizes)

	last := engine.Paginate(items, 99, 10)
	assert.Equal(t, 4, last.Page)
	assert.Equal(t, 30, last.Items[0])
	first := engine.Paginate(items, -3, 10)
	assert.Equal(t, 1, first.Page)

	empty := engine.Paginate([]string{}, 3, 10)
	assert.Equal(t, 1, empty.TotalPages)
	assert.Equal(t, 1, empty.Page)
	assert.Empty(t, empty.Items)
}

func TestPagerResetsOnSizeChange(t *testing.T) {
	items := make([]int, 37)
	p := engine.NewPager(10)
	p.SetPage(3)
	assert.Equal(t, 3, engine.Of(p, items).Page)

	p.SetPageSize(5)
	assert.Equal(t, 1, p.Page())
	pg := engine.Of(p, items)
	assert.Equal(t, 8, pg.TotalPages)

	p.SetPage(20)
	assert.Equal(t, 8, engine.Of(p, items).Page)
	assert.Equal(t, 8, p.Page(), "pager pins the clamped page")
}

func TestResume(t *testing.T) {
	items := make([]int, 37)

	same := engine.Resume(3, 10, 10, 15)
	assert.Equal(t, 3, engine.Of(same, items).Page)

	noPrev := engine.Resume(3, 5, 0, 15)
	assert.Equal(t, 3, engine.Of(noPrev, items).Page)
	assert.Equal(t, 5, noPrev.PageSize())

	resized := engine.Resume(3, 5, 10, 15)
	assert.Equal(t, 1, resized.Page())
	pg := engine.Of(resized, items)
	assert.Equal(t, 1, pg.Page)
	assert.Equal(t, 8, pg.TotalPages)

	fallback := engine.Resume(2, 0, 0, 15)
	assert.Equal(t, 15, fallback.PageSize())
	assert.Equal(t, 2, engine.Of(fallback, items).Page)
}

func TestFilter(t *testing.T) {
	mk := func(id, name, typ, status string, role domain.Role) engine.Item {
		l := domain.FromRecord(domain.LeaveRecord{ID: domain.ID(id), EmployeeName: name, LeaveType: typ, Status: status, Reason: "family trip"})
		return engine.Item{Leave: l, Role: role, RoleLabel: role.Label()}
	}
	items := []engine.Item{
		mk("1", "Kamal Perera", "CASUAL", "PENDING_ACTING_OFFICER", domain.RoleActing),
		mk("2", "Nimali Silva", "SICK", "APPROVED", domain.RoleSupervising),
		mk("3", "Sunil Fernando", "MATERNITY", "REJECTED_BY_APPROVAL_OFFICER", domain.RoleApproval),
	}
	ids := func(in []engine.Item) []domain.ID {
		var out []domain.ID
		for _, it := range in {
			out = append(out, it.ID)
		}
		return out
	}
	assert.Len(t, engine.Filter{}.Apply(items), 3)
	assert.Equal(t, []domain.ID{"2"}, ids(engine.Filter{Query: "nimali"}.Apply(items)))
	assert.Equal(t, []domain.ID{"3"}, ids(engine.Filter{LeaveType: "maternity"}.Apply(items)))
	assert.Equal(t, []domain.ID{"1"}, ids(engine.Filter{Status: "pending"}.Apply(items)))
	assert.Equal(t, []domain.ID{"3"}, ids(engine.Filter{Status: "rejected"}.Apply(items)))
	assert.Equal(t, []domain.ID{"2"}, ids(engine.Filter{Role: "Supervising Officer"}.Apply(items)))
	assert.Len(t, engine.Filter{Query: "TRIP"}.Apply(items), 3)
	assert.Empty(t, engine.Filter{Role: "janitor"}.Apply(items))
}
