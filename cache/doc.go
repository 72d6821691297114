// Package cache provides the plan cache used by the query translator.
//
// # Overview
//
// Compiling a search walks property paths, builds joins and subqueries and
// binds values. The result is immutable, so a translator configured with a
// CacheService stores it under a key derived from the search and reuses it
// for identical searches.
//
//   - CacheService: read-through storage keyed by string
//   - KeySerializer: builds stable keys from a method name and arguments
//
// # Basic Usage
//
//	svc, err := cache.NewCacheService(cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	keys := cache.NewHashedKeySerializer(cache.NewDefaultKeySerializer())
//	key := keys.SerializeKey("plan", searchType, filters, sorts)
//	q, err := cache.GetOrFetch(ctx, svc, key, func(ctx context.Context) (*Query, error) {
//		return compile(s)
//	})
//
// # Key Serialization Strategy
//
// The default key serializer uses reflection:
//
//   - Basic types: direct string representation
//   - Byte slices and arrays (uuids included): hex
//   - time.Time: RFC 3339 in UTC
//   - reflect.Type: package path and name
//   - Slices, arrays, maps and structs: recursive, maps sorted by pair
//   - Functions and channels: %p, stable only within one process
//
// Recursion stops after a fixed depth so cyclic values still produce a key.
// The hashed serializer replaces the arguments with an xxhash digest so large
// filter trees give short keys.
package cache
