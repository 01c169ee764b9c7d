// Package syncer runs the sync cycle of one repository: download every
// machine's history, reconcile it with the local branch, adopt the winning
// branch and upload whatever the remote store has not seen yet.
package syncer
