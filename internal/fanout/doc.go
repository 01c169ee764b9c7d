// Package fanout runs a fetch function over many keys in parallel with a
// per-item timeout and reports whether enough of them succeeded.
package fanout
