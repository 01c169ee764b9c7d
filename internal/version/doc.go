// Package version models database version headers and the branches built
// from them. A Branch is one machine's append-ordered view of history and may
// be partial; a BranchSet holds one Branch per known machine for a single
// reconciliation round.
package version
