// Package retrieval answers one user question with retrieved instructor context.
//
// Per turn the pipeline embeds the newest user message, queries the index for
// the top-k entries, renders them as a context block in index order and hands
// that block plus the full history to the answer composer. Any failure before
// generation aborts the turn; the pipeline never answers without context.
package retrieval
