// ABOUTME: Tests for task list views and dashboard statistics
// ABOUTME: Covers status filtering, counting, progress rounding and recent task selection

package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/taskboard/internal/store"
)

func sampleTasks() []*store.Task {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id, project string, status store.TaskStatus, offset int) *store.Task {
		return &store.Task{ID: id, ProjectID: project, Title: id, Status: status, CreatedAt: base.Add(time.Duration(offset) * time.Minute)}
	}
	return []*store.Task{
		mk("t1", "p1", store.StatusDone, 1),
		mk("t2", "p1", store.StatusTodo, 2),
		mk("t3", "p2", store.StatusDone, 3),
		mk("t4", "p2", store.StatusInProgress, 4),
		mk("t5", "p1", store.StatusReview, 5),
		mk("t6", "p1", store.StatusDone, 6),
	}
}

func ids(tasks []*store.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestFilterTasksByStatus(t *testing.T) {
	tasks := sampleTasks()

	assert.Equal(t, []string{"t1", "t3", "t6"}, ids(FilterTasksByStatus(tasks, "done")))
	assert.Equal(t, []string{"t4"}, ids(FilterTasksByStatus(tasks, "in_progress")))
	assert.Empty(t, FilterTasksByStatus(tasks, "blocked"))
	assert.Len(t, FilterTasksByStatus(tasks, "all"), 6)
	assert.Len(t, FilterTasksByStatus(tasks, ""), 6)
}

func TestCountByStatus(t *testing.T) {
	counts := CountByStatus(sampleTasks())
	assert.Equal(t, 3, counts[store.StatusDone])
	assert.Equal(t, 1, counts[store.StatusTodo])
	assert.Equal(t, 1, counts[store.StatusInProgress])
	assert.Equal(t, 1, counts[store.StatusReview])

	empty := CountByStatus(nil)
	assert.Len(t, empty, len(store.Statuses))
}

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, 0, ProgressPercent(nil))
	assert.Equal(t, 50, ProgressPercent(sampleTasks()))

	third := []*store.Task{{Status: store.StatusDone}, {Status: store.StatusTodo}, {Status: store.StatusTodo}}
	assert.Equal(t, 33, ProgressPercent(third))

	twoThirds := []*store.Task{{Status: store.StatusDone}, {Status: store.StatusDone}, {Status: store.StatusTodo}}
	assert.Equal(t, 67, ProgressPercent(twoThirds))
}

func TestRecentTasks(t *testing.T) {
	tasks := sampleTasks()
	recent := RecentTasks(tasks, 5)
	assert.Equal(t, []string{"t6", "t5", "t4", "t3", "t2"}, ids(recent))
	assert.Equal(t, "t1", tasks[0].ID, "input order untouched")

	assert.Len(t, RecentTasks(tasks[:2], 5), 2)
}

func TestBuildDashboard(t *testing.T) {
	projects := []*store.Project{{ID: "p2", Name: "Two"}, {ID: "p1", Name: "One"}, {ID: "p3", Name: "Empty"}}
	d := BuildDashboard(projects, sampleTasks())

	assert.Equal(t, 3, d.TotalProjects)
	assert.Equal(t, 6, d.TotalTasks)
	assert.Equal(t, 1, d.InProgressTasks)
	assert.Equal(t, 3, d.DoneTasks)
	assert.Len(t, d.Recent, RecentTaskCount)
	require.Len(t, d.PerProject, 3)
	assert.Equal(t, "p2", d.PerProject[0].Project.ID)
	assert.Equal(t, 2, d.PerProject[0].Count)
	assert.Equal(t, 4, d.PerProject[1].Count)
	assert.Equal(t, 0, d.PerProject[2].Count)
	assert.Equal(t, "One", d.ProjectNames["p1"])
}

func TestGateway_ProjectDetail(t *testing.T) {
	g, _, _ := newTestGateway(t)
	ctx := context.Background()

	p, err := g.CreateProject(ctx, &store.Project{Name: "P"})
	require.NoError(t, err)
	for _, s := range []store.TaskStatus{store.StatusDone, store.StatusTodo, store.StatusDone} {
		_, err := g.CreateTask(ctx, &store.Task{ProjectID: p.ID, Title: string(s), Status: s})
		require.NoError(t, err)
	}

	d, err := g.ProjectDetail(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, d.Tasks, 3)
	assert.Equal(t, 67, d.Progress)
	assert.Equal(t, 2, d.Counts[store.StatusDone])
	assert.Len(t, d.Filtered("todo"), 1)

	dash, err := g.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dash.TotalProjects)
	assert.Equal(t, 3, dash.TotalTasks)
}
