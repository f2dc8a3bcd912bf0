// Package storage defines the document-store contract the orchestration
// engine runs against. Each entity kind is a flat keyed collection;
// hierarchy is expressed through parent-id fields, not nested documents,
// so each level versions independently.
//
// Implementations live in the memory and postgres subpackages. Both honor
// the same sentinel errors and the advisory lock used to serialize
// supersede-and-create on a (target, content kind) key.
package storage
