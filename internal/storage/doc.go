// Package storage provides durable state for TokDrop.
//
// Two layers:
//
//   - KVEngine: an embedded transactional key-value engine. BadgerEngine
//     implements it on top of Badger v3 with background value-log GC and
//     an in-memory mode for tests.
//   - RecordStore: the typed view the bot works with. Token records,
//     open-batch markers, the premium set and pending retractions live
//     under separate key prefixes of one KVEngine.
//
// Key layout:
//
//	token/<id>                  {"created": <epoch s>, "created_ns": <epoch ns>, "files": [...]}
//	open/<conversation>         <token id>
//	premium/<user>              true
//	retract/<chat>/<message>    {"chat":..,"message":..,"due": <epoch s>}
//
// Every mutating RecordStore call commits as a single transaction.
package storage
