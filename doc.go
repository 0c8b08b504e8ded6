// Package newsdex is an embeddable client for the newsdex hybrid news
// retrieval engine. It reads an enriched news index kept in Redis with the
// search module, and optionally a Qdrant collection for the semantic side.
//
// A query runs BM25 and k-NN retrieval concurrently, min-max normalizes each
// ranked list, keeps only documents with a date or place inside the requested
// window, and blends the two scores as alpha*lexical + (1-alpha)*semantic.
//
//	client, err := newsdex.New(ctx,
//	    newsdex.WithRedis("localhost:6379"),
//	    newsdex.WithOpenAIEmbedder("http://localhost:8081/v1", "all-MiniLM-L6-v2", ""),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	alpha := 0.7
//	resp, err := client.Search(ctx, newsdex.Query{
//	    Text:     "oil prices",
//	    Alpha:    &alpha,
//	    DateFrom: "1987-02",
//	    Near:     &newsdex.Area{Lat: 29.76, Lon: -95.37, RadiusKm: 500},
//	})
//
// Errors carry a stable Kind, see KindOf.
package newsdex
