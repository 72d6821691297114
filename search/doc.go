// Package search holds the entity-agnostic query specification used by the
// generic DAO.
//
// # Overview
//
// A Search names an entity type and describes, without any SQL, which rows to
// return and in which shape:
//
//   - Filters: predicates on dotted property paths ("father.firstName"),
//     combined with AND (or OR when Disjunction is set) and nestable through
//     And, Or, Not and the collection quantifiers Some, All and None
//   - Fields: projected properties or aggregates; their order drives the
//     layout of array results
//   - Sorts, paging (FirstResult, MaxResults, Page) and Distinct
//   - Fetches: associations loaded eagerly onto entity results
//   - ResultMode: entities, single values, arrays or maps
//
// # Basic Usage
//
//	s := search.For[Person]().
//		AddFilterEqual("father.id", bob.ID).
//		AddField("firstName").
//		SetResultMode(search.ResultSingle)
//
//	names, err := generalDAO.Search(ctx, s)
//
// # Clear
//
// Clear only drops the filters. Fields, sorts, fetches, paging and the result
// mode survive so a search can be re-filtered in place; Reset drops
// everything but the type.
//
// # Examples
//
// ExampleOptions drive filter derivation from a sample entity. The defaults
// from NewExampleOptions skip nil and zero values, the Go equivalent of an
// unset property.
package search
