// Package cache holds the two in-memory tiers used while calculating a
// session: an immutable Snapshot of the input workbooks and a TTL'd Memo of
// computed values.
//
// Neither tier is authoritative. Dropping the memo or evaluating against an
// empty snapshot changes performance, never results.
package cache
