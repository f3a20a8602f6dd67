package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteVectorsIndex string

var deleteVectorsCmd = &cobra.Command{
	Use:   "delete-vectors ID...",
	Short: "Delete records by id",
	Long: `Delete records from the index. Deletion is atomic: if any id does not
exist, nothing is deleted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDeleteVectors,
}

func init() {
	rootCmd.AddCommand(deleteVectorsCmd)
	deleteVectorsCmd.Flags().StringVar(&deleteVectorsIndex, "index", "", "index name (default from config)")
}

func runDeleteVectors(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	idx, err := openIndex(cmd.Context(), client, deleteVectorsIndex)
	if err != nil {
		return err
	}
	if err := idx.DeleteVectors(cmd.Context(), args); err != nil {
		return err
	}
	fmt.Printf("Deleted %d records from %q\n", len(args), idx.Name())
	return nil
}
