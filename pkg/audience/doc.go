// Package audience builds filter definitions that target a subset of dataset rows.
//
// A Builder holds the AND/OR logic and the list of conditions for one dataset
// schema. Every mutation keeps the operator of each condition inside the
// domain of its column type and clears the "tested" flag; the flag is set
// again only when a server-side test result is recorded. An empty condition
// list means "no filter" and needs no test.
package audience
