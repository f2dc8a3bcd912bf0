// Package engine orchestrates content generation between the transport
// layer, the document store, and the LLM provider backend. It resolves
// instructions along the content hierarchy, assembles immutable context
// snapshots, executes generations with bounded retry, and manages the
// draft review lifecycle.
package engine
