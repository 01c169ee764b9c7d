// Package storage keeps the local version log of a repository.
//
// Every version the machine has ever held is a row with a status: MASTER rows
// form the current branch in append order, DIRTY rows are versions that were
// demoted when the machine adopted another branch. DIRTY rows are kept so the
// machine never reuses one of its own clock counters.
package storage
