package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"vectorstack/precise"
)

var (
	embedModel       string
	embedIsQuery     bool
	embedInstruction string
	embedJSON        bool
)

var embedCmd = &cobra.Command{
	Use:   "embed TEXT...",
	Short: "Compute embeddings",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)
	embedCmd.Flags().StringVarP(&embedModel, "model", "m", "", "embedding model (default is ingest.embedding_model, then index.embedding_model)")
	embedCmd.Flags().BoolVar(&embedIsQuery, "query", false, "embed as queries rather than documents")
	embedCmd.Flags().StringVar(&embedInstruction, "instruction", "", "instruction prepended by the model")
	embedCmd.Flags().BoolVar(&embedJSON, "json", false, "print the vectors as JSON")
}

func runEmbed(cmd *cobra.Command, args []string) error {
	model := embedModel
	if model == "" {
		model = cfg.Ingest.EmbeddingModel
	}
	if model == "" {
		model = cfg.Index.EmbeddingModel
	}
	client, err := newClient()
	if err != nil {
		return err
	}
	emb, err := client.Embed(cmd.Context(), precise.EmbedRequest{
		Texts:       args,
		Model:       model,
		IsQuery:     embedIsQuery,
		Instruction: embedInstruction,
	})
	if err != nil {
		return err
	}
	if embedJSON {
		return printJSON(emb.Vectors)
	}
	fmt.Println(emb.String())
	return nil
}
