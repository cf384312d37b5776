// ABOUTME: Derived views over task lists: status filtering, counts, progress and dashboard stats
// ABOUTME: Pure functions plus gateway helpers that load what the dashboard and project pages show

package tracker

import (
	"context"
	"math"
	"sort"

	"github.com/2389/taskboard/internal/store"
)

// StatusAll is the filter value that matches every task.
const StatusAll = "all"

// RecentTaskCount is how many tasks the dashboard lists.
const RecentTaskCount = 5

// FilterTasksByStatus returns the tasks whose status equals status, in their
// original order. "all" or "" returns every task.
func FilterTasksByStatus(tasks []*store.Task, status string) []*store.Task {
	if status == "" || status == StatusAll {
		return tasks
	}
	out := make([]*store.Task, 0, len(tasks))
	for _, t := range tasks {
		if string(t.Status) == status {
			out = append(out, t)
		}
	}
	return out
}

// CountByStatus tallies tasks per status. Every known status is present.
func CountByStatus(tasks []*store.Task) map[store.TaskStatus]int {
	counts := make(map[store.TaskStatus]int, len(store.Statuses))
	for _, s := range store.Statuses {
		counts[s] = 0
	}
	for _, t := range tasks {
		counts[t.Status]++
	}
	return counts
}

// ProgressPercent is the share of done tasks, rounded to a whole percent.
// An empty list is 0%.
func ProgressPercent(tasks []*store.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range tasks {
		if t.Status == store.StatusDone {
			done++
		}
	}
	return int(math.Round(float64(done) / float64(len(tasks)) * 100))
}

// RecentTasks returns up to n tasks, newest first.
func RecentTasks(tasks []*store.Task, n int) []*store.Task {
	sorted := make([]*store.Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// ProjectCount pairs a project with how many tasks it has.
type ProjectCount struct {
	Project *store.Project
	Count   int
}

// TaskCountByProject counts tasks per project, keeping the projects' order.
func TaskCountByProject(projects []*store.Project, tasks []*store.Task) []ProjectCount {
	byID := make(map[string]int, len(projects))
	for _, t := range tasks {
		byID[t.ProjectID]++
	}
	out := make([]ProjectCount, len(projects))
	for i, p := range projects {
		out[i] = ProjectCount{Project: p, Count: byID[p.ID]}
	}
	return out
}

// Dashboard is what the landing page shows.
type Dashboard struct {
	TotalProjects   int
	TotalTasks      int
	InProgressTasks int
	DoneTasks       int
	Recent          []*store.Task
	PerProject      []ProjectCount
	ProjectNames    map[string]string
}

// BuildDashboard derives dashboard figures from full project and task lists.
func BuildDashboard(projects []*store.Project, tasks []*store.Task) *Dashboard {
	counts := CountByStatus(tasks)
	names := make(map[string]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}
	return &Dashboard{
		TotalProjects:   len(projects),
		TotalTasks:      len(tasks),
		InProgressTasks: counts[store.StatusInProgress],
		DoneTasks:       counts[store.StatusDone],
		Recent:          RecentTasks(tasks, RecentTaskCount),
		PerProject:      TaskCountByProject(projects, tasks),
		ProjectNames:    names,
	}
}

// Dashboard loads projects and tasks and builds the dashboard.
func (g *Gateway) Dashboard(ctx context.Context) (*Dashboard, error) {
	projects, err := g.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := g.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return nil, err
	}
	return BuildDashboard(projects, tasks), nil
}

// ProjectDetail is a project with its tasks and derived stats.
type ProjectDetail struct {
	Project  *store.Project
	Tasks    []*store.Task // all tasks, newest first
	Counts   map[store.TaskStatus]int
	Progress int
}

// Filtered returns the detail's tasks narrowed to one status.
func (d *ProjectDetail) Filtered(status string) []*store.Task {
	return FilterTasksByStatus(d.Tasks, status)
}

// ProjectDetail loads a project with its tasks and stats.
func (g *Gateway) ProjectDetail(ctx context.Context, id string) (*ProjectDetail, error) {
	p, err := g.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	tasks, err := g.ListTasks(ctx, store.TaskFilter{ProjectID: id})
	if err != nil {
		return nil, err
	}
	return &ProjectDetail{
		Project:  p,
		Tasks:    tasks,
		Counts:   CountByStatus(tasks),
		Progress: ProgressPercent(tasks),
	}, nil
}
