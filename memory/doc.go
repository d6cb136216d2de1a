// Package memory implements a conversational memory engine: it groups
// dialogue turns into token-budgeted chunks, embeds each chunk, persists
// chunks and their source messages, and retrieves the chunks most
// relevant to a new query for prompt injection.
//
// Architecture:
//   - Store: persistence backend for messages and chunks
//     (sqlite for durable state, chromem for ephemeral deployments)
//   - Embedder: text-to-vector conversion (onnx local, mock for tests)
//   - Summarizer: external text-completion collaborator used when a
//     segment overflows the token budget
//   - Chunker: segments history at model-response boundaries
//   - Retriever: owner-scoped exact nearest-neighbor search
//   - Manager: composes the above into the ingest-and-store and
//     query-and-retrieve pipelines
//
// Integration:
//   - RETRIEVE phase: call Manager.RetrieveContext before generating a
//     response and prepend the blocks as system-role context
//   - INGEST phase: call Manager.IngestAsync after the reply has been
//     delivered; storage never blocks the user-visible path
package memory
