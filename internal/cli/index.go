package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"vectorstack/precise"
)

var (
	indexYes          bool
	indexWait         bool
	indexJSON         bool
	indexPollInterval time.Duration
	indexWaitTimeout  time.Duration
	indexDenseScale   float64
	indexSparseScale  float64
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Create, inspect and delete indexes",
}

var indexCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create an index from the configured settings",
	Long: `Create a PreciseSearch index. Metric, features type, embedding model and
dimension come from the index section of the config file.

Examples:
  precise index create          # Create the configured index
  precise index create --wait   # Block until it is ready`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndexCreate,
}

var indexListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexes",
	Args:  cobra.NoArgs,
	RunE:  runIndexList,
}

var indexInfoCmd = &cobra.Command{
	Use:   "info [name]",
	Short: "Show an index description",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndexInfo,
}

var indexDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete an index (irreversible)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndexDelete,
}

var indexOptimizeCmd = &cobra.Command{
	Use:   "optimize [name]",
	Short: "Optimize an index for query latency",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndexOptimize,
}

var indexWaitCmd = &cobra.Command{
	Use:   "wait [name]",
	Short: "Wait until an index is ready",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndexWait,
}

var indexScaleCmd = &cobra.Command{
	Use:   "set-scale [name]",
	Short: "Set the dense and sparse weights of a hybrid index",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndexSetScale,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexCreateCmd, indexListCmd, indexInfoCmd, indexDeleteCmd,
		indexOptimizeCmd, indexWaitCmd, indexScaleCmd)

	indexCmd.PersistentFlags().DurationVar(&indexPollInterval, "poll-interval", precise.DefaultPollInterval, "status polling interval")
	indexCmd.PersistentFlags().DurationVar(&indexWaitTimeout, "timeout", 10*time.Minute, "maximum time to wait")

	indexCreateCmd.Flags().BoolVar(&indexWait, "wait", false, "wait until the index is ready")
	indexOptimizeCmd.Flags().BoolVar(&indexWait, "wait", false, "wait until optimization finished")
	indexDeleteCmd.Flags().BoolVarP(&indexYes, "yes", "y", false, "do not ask for confirmation")
	indexDeleteCmd.Flags().BoolVar(&indexWait, "wait", false, "wait until the index is gone")
	indexListCmd.Flags().BoolVar(&indexJSON, "json", false, "output as JSON")
	indexInfoCmd.Flags().BoolVar(&indexJSON, "json", false, "output as JSON")
	indexScaleCmd.Flags().Float64Var(&indexDenseScale, "dense", 1.0, "dense similarity weight")
	indexScaleCmd.Flags().Float64Var(&indexSparseScale, "sparse", 1.0, "sparse similarity weight")
}

func indexName(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Index.Name
}

func runIndexCreate(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	req := precise.CreateIndexRequest{
		Name:               indexName(args),
		Metric:             precise.Metric(cfg.Index.Metric),
		FeaturesType:       precise.FeaturesType(cfg.Index.FeaturesType),
		EmbeddingModelName: cfg.Index.EmbeddingModel,
		Dimension:          cfg.Index.Dimension,
	}
	ctx, cancel := waitContext(cmd)
	defer cancel()

	info, err := client.CreateIndex(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	fmt.Printf("Index %q created (status: %s)\n", req.Name, info.Status)

	if indexWait {
		info, err = client.WaitUntilReady(ctx, req.Name, indexPollInterval)
		if err != nil {
			return err
		}
		fmt.Printf("Index %q is %s\n", req.Name, info.Status)
	}
	return nil
}

func runIndexList(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	indexes, err := client.ListIndexes(cmd.Context())
	if err != nil {
		return err
	}
	if indexJSON {
		return printJSON(indexes)
	}
	if len(indexes) == 0 {
		fmt.Println("No indexes.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATUS\tRECORDS\tDIM\tMETRIC\tFEATURES\tMODEL")
	for _, ix := range indexes {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			ix.Name, ix.Status, ix.NumRecords, ix.Dimension, ix.Metric, ix.FeaturesType, ix.EmbeddingModelName)
	}
	return tw.Flush()
}

func runIndexInfo(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	info, err := client.DescribeIndex(cmd.Context(), indexName(args))
	if err != nil {
		return err
	}
	if indexJSON {
		return printJSON(info)
	}
	fmt.Println(info.String())
	return nil
}

func runIndexDelete(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	name := indexName(args)
	var opts []precise.DeleteOption
	if !indexYes {
		opts = append(opts, precise.WithConfirmation(stdinConfirmer()))
	}

	ctx, cancel := waitContext(cmd)
	defer cancel()
	if err := client.DeleteIndex(ctx, name, opts...); err != nil {
		if errors.Is(err, precise.ErrDeletionCancelled) {
			fmt.Println("Deletion cancelled.")
			return nil
		}
		return err
	}
	fmt.Printf("Index %q scheduled for deletion\n", name)

	if indexWait {
		if err := client.WaitUntilDeleted(ctx, name, indexPollInterval); err != nil {
			return err
		}
		fmt.Printf("Index %q deleted\n", name)
	}
	return nil
}

func runIndexOptimize(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := waitContext(cmd)
	defer cancel()

	idx, err := openIndex(ctx, client, indexName(args))
	if err != nil {
		return err
	}
	if err := idx.OptimizeForLatency(ctx); err != nil {
		return err
	}
	fmt.Printf("Optimization of %q started\n", idx.Name())

	if indexWait {
		info, err := client.WaitUntilReady(ctx, idx.Name(), indexPollInterval)
		if err != nil {
			return err
		}
		fmt.Printf("Index %q is %s (optimized for latency: %v)\n", info.Name, info.Status, info.OptimizedForLatency)
	}
	return nil
}

func runIndexWait(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := waitContext(cmd)
	defer cancel()

	info, err := client.WaitUntilReady(ctx, indexName(args), indexPollInterval)
	if err != nil {
		return err
	}
	fmt.Println(info.String())
	return nil
}

func runIndexSetScale(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	idx, err := openIndex(ctx, client, indexName(args))
	if err != nil {
		return err
	}
	if err := idx.SetSimilarityScale(ctx, indexDenseScale, indexSparseScale); err != nil {
		return err
	}
	fmt.Printf("Similarity scale of %q set to dense=%g sparse=%g\n", idx.Name(), indexDenseScale, indexSparseScale)
	return nil
}

func waitContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), indexWaitTimeout)
}

// stdinConfirmer asks a yes/no question on the terminal.
func stdinConfirmer() precise.Confirmer {
	return precise.ConfirmFunc(func(prompt string) (bool, error) {
		fmt.Printf("%s [y/N]: ", prompt)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return false, nil
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
