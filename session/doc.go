// Package session implements the unit-of-work the DAO runs against.
//
// A Session wraps a bun.IDB (a *bun.DB or a bun.Tx) and keeps an identity
// map: every row is represented by a single tracked instance while the
// session is open. Inserts and deletes are executed immediately. Updates
// are deferred; Flush compares each tracked entity with the msgpack
// snapshot taken when it was loaded and writes only the changed ones.
//
// # Transactions
//
// Factory.Begin opens a transactional session. Commit flushes and commits,
// Rollback and Close abandon the transaction. RunInTx wraps both around a
// callback and hands the session over through the context:
//
//	err := factory.RunInTx(ctx, func(ctx context.Context) error {
//		_, err := dao.Save(ctx, person)
//		return err
//	})
//
// # References
//
// GetReference returns a handle without reading the row. Resolve loads it
// through the session that created it and fails with ErrEntityNotFound when
// the row does not exist, or ErrAttachment once that session is closed.
package session
