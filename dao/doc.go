// Package dao provides the entity agnostic GeneralDAO, a typed GenericDAO
// facade and a Dispatcher that routes calls to per-type overrides.
//
// # Overview
//
// General implements GeneralDAO on top of the session carried by the
// context and the search translator. It never owns a connection: open a
// session with a session.Factory and pass it along in the context.
//
//	registry := metadata.NewRegistry()
//	_ = registry.Register((*Person)(nil))
//
//	factory := session.NewFactory(db, registry)
//	general := dao.NewGeneral(registry)
//
//	err := factory.RunInTx(ctx, func(ctx context.Context) error {
//		_, err := general.Save(ctx, &Person{FirstName: "Fred"})
//		return err
//	})
//
// # Typed access
//
// Generic[T, ID] wraps any GeneralDAO for one entity type. Searches run
// through it get T filled in when their type is empty. The package level
// helpers Find, FindMany, FindAll, SearchAs and SearchUniqueAs give the same
// typed results for one-off calls.
//
//	people := dao.NewGeneric[Person, int64](general)
//	fred, err := people.Find(ctx, 1)
//
// # Dispatching
//
// A Dispatcher is a GeneralDAO that sends each call to the override
// registered for the entity type involved, and to the general DAO
// otherwise. An override implements any subset of the capability
// interfaces (Finder, Saver, Searcher and so on); missing capabilities fall
// back to the general DAO.
//
//	d := dao.NewDispatcher(general)
//	err := d.SetOverrides(map[reflect.Type]any{
//		reflect.TypeFor[Person](): dao.Override(people),
//		reflect.TypeFor[Project](): projectService,
//	})
//
// Batch calls are split per entity type, in the order types are first seen.
// Flush is ambiguous once overrides exist and fails with
// ErrDispatcherMisuse; use FlushType instead.
//
// RepositoryOverride adapts a go-repository-bun repository so it can serve
// finds, writes and entity searches of its type inside a dispatcher.
package dao
