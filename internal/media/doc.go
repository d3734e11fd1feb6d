// Package media persists file records and their pipeline lifecycle in SQLite.
package media
