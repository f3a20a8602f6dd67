// Package precise is a client for the VectorStack PreciseSearch vector index
// service and its embeddings endpoint.
//
// Index creation, optimization and deletion are asynchronous on the server;
// the client observes them by polling the index status.
//
//	ctx := context.Background()
//	c, err := precise.NewClient() // reads VECTORSTACKAI_API_KEY
//	if err != nil {
//		log.Fatal(err)
//	}
//	_, err = c.CreateIndex(ctx, precise.CreateIndexRequest{
//		Name:               "docs",
//		Metric:             precise.MetricCosine,
//		FeaturesType:       precise.FeaturesHybrid,
//		EmbeddingModelName: "vstackai-law-1",
//	})
//	if _, err := c.WaitUntilReady(ctx, "docs", 0); err != nil {
//		log.Fatal(err)
//	}
//	idx, _ := c.Index(ctx, "docs")
//	idx.Upsert(ctx, []precise.Record{{ID: "a", Metadata: map[string]any{"text": "hello"}}})
//	hits, _ := idx.Search(ctx, precise.SearchRequest{Text: "greeting", TopK: 5})
package precise
