// Package notify posts project and task activity to chat.
//
// The tracker gateway reports three kinds of events: a task was created, a
// task moved to done, and a project was deleted. [MatrixNotifier] queues them
// and a single worker posts each one to a Matrix room via mautrix, so a slow
// homeserver never delays a request. [Nop] is used when notifications are
// disabled. Delivery failures are logged and never reach the caller.
package notify
