// Package lease provides cooperative, cross-process mutual exclusion over a
// shared resource using ticket files in a lock directory.
//
// Every prospective holder writes a ticket file named with a fixed prefix
// plus its own unique holder ID. A ticket records when the holder asked for
// the lease. The holder of the lease is defined, at any instant, as the
// ticket with the smallest (requested_at, holder_id) pair across all tickets
// in the directory. Acquisition polls until the caller's own ticket is that
// minimum; release deletes the caller's ticket, which promotes the
// next-smallest ticket.
//
// # Critical Patterns
//
// CP-1: Deterministic Arbitration
//   - The winner is min(requested_at, holder_id), never directory order
//   - Identical timestamps are broken by holder ID, so there is always
//     exactly one winner
//
// CP-2: Unparsable Tickets Are Invisible
//   - A ticket mid-write (or corrupted) fails to parse and is skipped by
//     the minimum computation, not escalated as an error
//
// CP-3: Non-Reentrancy
//   - Acquire while already holding is a programming error (ErrHeld),
//     surfaced immediately rather than deadlocking or silently nesting
//
// CP-4: Stale Ticket Expiry (optional hardening)
//   - With a TTL configured, tickets older than the TTL are ignored by the
//     minimum computation so a crashed holder cannot wedge the lease forever
//   - With no TTL, behavior matches the reference protocol: a stale ticket
//     starves all other callers
//
// The protocol is purely filesystem-local lease arbitration; it is not a
// distributed lock service.
package lease
