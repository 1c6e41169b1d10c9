// Package ragdex embeds the ragdex document index in a Go program.
//
// A Client owns one index directory: documents are split into chunks,
// embedded and stored together with a catalog of which chunks belong to
// which document. Every ingest and delete is committed to disk before it
// returns, so a reopened Client sees exactly the last committed state.
//
//	client, _ := ragdex.New(ctx,
//	    ragdex.WithDir("./data/index"),
//	    ragdex.WithEmbedder(myEmbedder),
//	    ragdex.WithGenerator(myGenerator),
//	)
//	defer client.Close()
//
//	_, _ = client.Ingest(ctx, "handbook.md", content)
//	hits, _ := client.Search(ctx, "vacation policy", 4)
//	answer, _ := client.Ask(ctx, "How many vacation days do I get?", 4)
//
// Without WithEmbedder the client uses a deterministic feature-hashing
// embedder, which is enough for tests and keyword-like retrieval.
package ragdex
