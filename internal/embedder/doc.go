// Package embedder turns text into vectors for the semantic rerank stage of
// retrieval.
//
// Three providers are available. OpenAI and Jina are reached over their
// OpenAI-compatible HTTP APIs with batching and exponential backoff. The
// local provider needs no network: it hashes search terms and term pairs
// into a 384-dimension vector, which is enough to rank code chunks by shared
// vocabulary.
//
//	e, err := embedder.New(embedder.Config{Provider: "local", CacheSize: 10000})
//	if err != nil {
//	    return err
//	}
//	defer e.Close()
//
//	sim := embedder.NewSimilarity(e)
//	scores, err := sim.Similarity(ctx, "parse config file", texts)
//
// Provider selection without explicit configuration follows
// CODECTX_EMBEDDING_PROVIDER, then JINA_API_KEY, then OPENAI_API_KEY, and
// falls back to local.
package embedder
