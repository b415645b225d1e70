// Package rag implements the retrieval pipeline: splitting documents into
// overlapping chunks, retrieving the most relevant chunks for a query,
// assembling them into a context block with citations, and building the
// system prompt handed to the model.
package rag
