// Package reconcile decides which machine's history wins when several
// machines advanced a shared history independently.
//
// The pipeline is a chain of pure functions over read-only snapshots:
//
//	Stitch -> LastCommon -> FirstConflicting -> WinningFirstConflicting -> WinnersLast
//
// Stitch closes the gaps of partial branches by splicing in prefixes from
// other branches. LastCommon finds the newest version every machine has seen.
// FirstConflicting collects each machine's first version past that point and
// WinningFirstConflicting picks the earliest one (timestamp, then owner id).
// WinnersLast repeats the last three steps over the co-winners until one
// branch remains; its last header is the version every machine must adopt.
//
// Nothing in this package performs I/O or keeps state between calls, so a
// failed or aborted round can simply be run again. Callers must serialize
// rounds that share a local branch.
package reconcile
