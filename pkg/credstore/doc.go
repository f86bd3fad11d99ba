/*
Package credstore holds the process-wide bearer credential of the calendar
client.

A Store keeps the current Credential in memory and mirrors every change into a
durable Backend slot so that a restart does not force a new login. The Store
never validates expiry; that is the job of the expiry monitor and the server.

Backends:

  - NewMemoryBackend: process memory only (tests, ephemeral sessions)
  - drivers/file: a JSON document on disk
  - drivers/sqlite: a SQLite table managed by embedded migrations
  - drivers/redis: one Redis key per slot

Reads and writes are serialised by a read/write lock: readers observe either
the previous or the next credential, never a partial value, and the last
writer wins.
*/
package credstore
