// Package metadata builds explicit schema descriptors for bun models.
//
// A descriptor (Entity) is built once per Go type from its bun struct tags and
// cached in a Registry. The translator, the session and the DAO walk these
// descriptors instead of reflecting over struct fields on every call.
//
// # Mapping Rules
//
// The rules follow bun's own defaults so a model needs no extra tags:
//
//   - table name: bun.BaseModel "table:" option, else the plural snake_case
//     type name (Person -> people)
//   - alias: bun.BaseModel "alias:" option, else the snake_case type name
//   - column: the tag name, else the snake_case field name
//   - identifier: the single "pk" column, else the "id" column
//   - property name: the lowerCamel field name (FirstName -> firstName)
//
// Associations are read from "rel:belongs-to" (a reference) and
// "rel:has-many" (a collection) with an optional "join:base=target" option.
//
// # Property Paths
//
// Registry.Resolve turns a dotted path such as "father.firstName" into the
// chain of properties it crosses. Every step but the last must be an
// association.
package metadata
