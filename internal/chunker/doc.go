// Package chunker divides indexed source files into CodeChunks, the unit
// that retrieval scores and selects.
//
// Chunks follow symbol boundaries in every supported language:
//   - Functions and methods: the declaration plus its attached doc comment
//   - Classes, interfaces, enums, namespaces: the whole body, members included
//   - Type aliases: the declaration
//   - Everything between symbols (imports, variables, statements): module chunks
//
// Chunks in test files are kind "test". A chunk larger than the configured
// token ceiling is split into consecutive "block" chunks.
//
// Token cost is estimated as len(content)/4, and every chunk carries a SHA-256
// content hash used for deduplication during retrieval.
//
//	c := chunker.New(0)
//	for _, ch := range c.ChunkFile(file, content) {
//	    fmt.Printf("%s %s %d tokens\n", ch.ID, ch.Kind, ch.TokenCount)
//	}
package chunker
