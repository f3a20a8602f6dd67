package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"vectorstack/internal/adapter/analyzer"
	"vectorstack/internal/adapter/cache"
	"vectorstack/internal/adapter/retriever"
	"vectorstack/internal/domain"
	"vectorstack/internal/port"
	"vectorstack/internal/usecase"
	"vectorstack/precise"
)

var (
	queryText     string
	queryTopK     int
	queryJSON     bool
	queryMetadata bool
	queryInteract bool
	queryBudget   int
	queryIndex    string
	queryDiverse  bool
	queryWatch    bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the index",
	Long: `Run a semantic query against the index and print the matching chunks
with their source locations.

Examples:
  precise query -q "duty of care"
  precise query -q "capital gains" --top-k 5 --json
  precise query -q "liability" --budget 2000   # Pack hits into a token budget
  precise query -i                             # Interactive mode
  precise query -i --watch                     # Interactive, re-ingesting edited files`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "query text")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().BoolVar(&queryMetadata, "metadata", false, "include all record metadata")
	queryCmd.Flags().BoolVarP(&queryInteract, "interactive", "i", false, "read queries from stdin")
	queryCmd.Flags().IntVar(&queryBudget, "budget", 0, "pack results into this many tokens")
	queryCmd.Flags().StringVar(&queryIndex, "index", "", "index name (default from config)")
	queryCmd.Flags().BoolVar(&queryWatch, "watch", false, "with -i, keep the index in sync with the project directory while querying")
	queryCmd.Flags().BoolVar(&queryDiverse, "diverse", false, "over-fetch and rerank with MMR to reduce near-duplicate hits")
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryText == "" && !queryInteract {
		return fmt.Errorf("query is required (use -q or -i)")
	}
	topK := queryTopK
	if topK <= 0 {
		topK = cfg.Search.TopK
	}

	ctx := cmd.Context()
	var (
		idx *precise.Index
		emb port.Embedder
	)
	qc := cache.NewQueryCache(cfg.Cache.QueryCacheSize, cfg.Cache.QueryCacheTTL)

	if queryWatch {
		if !queryInteract {
			return fmt.Errorf("--watch requires interactive mode (-i)")
		}
		if queryIndex != "" && queryIndex != cfg.Index.Name {
			return fmt.Errorf("--watch works on the configured index %q only", cfg.Index.Name)
		}
		// Cached results go stale once the watcher re-ingests a file.
		env, err := newIngestEnv(cmd, nil, usecase.OnChange(qc.Invalidate))
		if err != nil {
			return err
		}
		defer env.Close()
		idx, emb = env.index, env.embedder

		w, err := env.watch(ctx, watchDebounce)
		if err != nil {
			return err
		}
		defer w.Stop()
	} else {
		client, err := newClient()
		if err != nil {
			return err
		}
		if idx, err = openIndex(ctx, client, queryIndex); err != nil {
			return err
		}
		if !idx.Cached().HasEmbeddingModel() {
			st, err := openState()
			if err != nil {
				return err
			}
			defer st.Close()
			if emb, err = newEmbedder(client, st); err != nil {
				return err
			}
		}
	}

	var searcher port.Searcher = idx
	if cfg.Cache.Enabled {
		searcher = cache.NewCachedSearcher(idx.Name(), idx, qc)
	}
	retrieve := usecase.NewRetrieveUseCase(searcher, idx.Cached(), emb, cfg.Search.MinScore)
	withMetadata := queryMetadata || (queryJSON && cfg.Search.ReturnMetadata)

	tokenizer := analyzer.NewTokenizer()
	fetchK := topK
	if queryDiverse {
		fetchK = topK * 3
	}

	run := func(q string) error {
		hits, err := retrieve.Retrieve(ctx, q, fetchK, withMetadata)
		if err != nil {
			return err
		}
		if queryDiverse {
			hits = retriever.NewMMRReranker(tokenizer, cfg.Search.MMRLambda, cfg.Search.DedupJaccard).Rerank(hits, topK)
		}
		if queryBudget > 0 {
			packed := usecase.NewPackUseCase(tokenizer).Pack(q, hits, queryBudget)
			if queryJSON {
				return printJSON(packed)
			}
			printPacked(packed)
			return nil
		}
		if queryJSON {
			return printJSON(hits)
		}
		printHits(hits)
		return nil
	}

	if !queryInteract {
		return run(queryText)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("query> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		q := strings.TrimSpace(scanner.Text())
		switch q {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		if err := run(q); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}

func printHits(hits []domain.Hit) {
	if len(hits) == 0 {
		fmt.Println("No results found.")
		return
	}
	for i, h := range hits {
		if h.Path != "" {
			fmt.Printf("\n%d. %s:%d-%d (score: %.4f)\n", i+1, h.Path, h.StartLine, h.EndLine, h.Score)
		} else {
			fmt.Printf("\n%d. %s (score: %.4f)\n", i+1, h.ID, h.Score)
		}
		if h.Text != "" {
			fmt.Println(indent(preview(h.Text, 8), "   "))
		}
		for k, v := range h.Metadata {
			if k == domain.MetaText {
				continue
			}
			fmt.Printf("   %s: %v\n", k, v)
		}
	}
}

func printPacked(p domain.PackedContext) {
	fmt.Printf("Packed %d snippets (%d/%d tokens)\n", len(p.Snippets), p.UsedTokens, p.BudgetTokens)
	for _, s := range p.Snippets {
		where := s.ID
		if s.Path != "" {
			where = strings.TrimSpace(s.Path + " " + s.Range)
		}
		fmt.Printf("\n--- %s (score: %.4f)\n%s\n", where, s.Score, s.Text)
	}
}

func preview(text string, maxLines int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) <= maxLines {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:maxLines], "\n") + fmt.Sprintf("\n... (%d more lines)", len(lines)-maxLines)
}

func indent(text, prefix string) string {
	return prefix + strings.ReplaceAll(text, "\n", "\n"+prefix)
}
