// Package api defines the domain types shared across storyloom: content
// entities, creative instructions, drafts, generation records, output
// schemas, and the error taxonomy used by every layer.
//
// The package is dependency-free by design. All I/O lives in the storage,
// provider, and transport packages; everything here is plain data plus the
// validation rules that hold regardless of where the data came from.
package api
