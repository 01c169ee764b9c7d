// Package scenario loads reconciliation fixtures from YAML.
//
// A scenario names the local machine, lists every machine's branch as
// canonical header strings and optionally states the expected outcome:
//
//	name: single divergence
//	local: A
//	branches:
//	  A: ["C/(C1)/T=1", "C/(C2)/T=2", "A/(A1,C2)/T=5"]
//	  B: ["C/(C1)/T=1", "C/(C2)/T=2", "B/(B1,C2)/T=7"]
//	expect:
//	  last_common: C/(C2)/T=2
//	  winners_last: A:A/(A1,C2)/T=5
//
// The same files drive the reconcile command and the package tests.
package scenario
