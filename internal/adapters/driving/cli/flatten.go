package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/normalisers"
	"github.com/custodia-labs/kbsync/internal/normalisers/contenttree"
)

var flattenRecord bool

var flattenCmd = &cobra.Command{
	Use:   "flatten [file|-]",
	Short: "Flatten a rich-text content tree",
	Long: `Reads a JSON content tree (or, with --record, a whole stored record)
from a file or standard input and prints the flattened result.

A content tree is a {"type":"doc","content":[...]} document. Paragraph
text is joined with spaces and paragraphs with newlines. With --record the
input is run through the same normalisers as the publish stage.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFlatten,
}

func init() {
	flattenCmd.Flags().BoolVar(&flattenRecord, "record", false, "treat input as a record and normalise it")
	rootCmd.AddCommand(flattenCmd)
}

func runFlatten(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	if flattenRecord {
		var rec domain.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		out := normalisers.Default().Normalise(rec)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	tree, err := contenttree.Decode(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), contenttree.FlattenString(tree))
	return err
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", args[0], err)
	}
	return data, nil
}
