// Package action defines the notification contract and the builtin
// notifiers executed on task state edges.
//
// Actions mirror providers: a build-time registration table, optional
// per-action default configuration files merged below task options, and
// mandatory/optional parameter validation. An action's Process is invoked
// synchronously inside the task's tick; a failing action is logged and the
// remaining actions in the list still run.
//
// Builtin actions: email (SMTP) and webhook (JSON over HTTP).
package action
