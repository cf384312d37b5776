// Package tracker is the data-access layer between the user-facing surfaces
// and storage.
//
// [Gateway] exposes one method per operation (projects, tasks, sign-up,
// sign-in, sign-out, current user). Each returns (result, error) and wraps
// store sentinels, so callers test failures with errors.Is. Lists come back
// newest first. Updates are partial and always advance updated_at. Deletes of
// missing rows succeed. Mutations are logged at debug level and announced to
// a notify.Notifier.
//
// The form layer ([ProjectForm], [TaskForm]) validates user input before any
// gateway call and reports problems as [FieldErrors]. The view helpers
// ([FilterTasksByStatus], [CountByStatus], [ProgressPercent], [RecentTasks],
// [TaskCountByProject]) derive what the dashboard and project pages display.
package tracker
