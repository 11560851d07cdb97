// Package topology stores the GeoControl hierarchy of networks, gateways and
// sensors.
//
// Every entity is addressed by a natural key: a network by its code, gateways
// and sensors by their MAC address. Keys are unique across the whole table,
// not only within the parent, and lookups are scoped: a sensor MAC requested
// under the wrong gateway is reported as not found.
//
// Updating an entity with a different key is a rename. The old row is
// replaced by a new one and its children are moved across inside a single
// transaction (see rename.go), so gateways, sensors and measurements survive
// the rename of any ancestor.
//
// # Thread Safety
//
// SQLiteRepository holds no state beyond the *sql.DB handle and is safe for
// concurrent use. Concurrent renames are serialised by SQLite's single writer
// and the UNIQUE indexes on the key columns.
package topology
