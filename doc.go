// Package hashio is a content-addressable object store.
//
// Values are serialized into records,
// and each record is stored under the SHA3-256 hash of its bytes.
// That hash is the value's identity:
// identical content always maps to the same record,
// so storing it twice writes it once.
//
// Composite values are described by a Model,
// an explicit list of scalar fields (encoded inline)
// and child fields (stored as values of their own and referenced by hash).
// Storing a composite value stores its children first,
// so a record is never visible before everything it refers to.
// The result on disk is a Merkle-DAG.
//
// Every model record carries a version and a type hash,
// a fingerprint of the model's field types.
// Loading a record checks both before touching the fields.
// When decoding fails,
// for instance because the record was written under an older schema,
// the model's migrations are tried in order.
// A migrated value can be stored again to rewrite it in the current format.
//
// Records live in a Backend.
// The file backend (in the store/file subpackage)
// lays them out as <root>/ab/cdef...,
// writing each to a temporary sibling first and renaming it into place,
// so a record at its final path is always complete.
// Other backends live alongside it in the store tree.
//
// The hashlog subpackage provides a hash-chained append log
// whose entries can be persisted in a Store.
package hashio
