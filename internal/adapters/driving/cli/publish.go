package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Run one flatten-and-publish cycle",
	Long: `Reads every record from the source store, flattens rich-text content
into plain fields and upserts the result into the target store.`,
	Annotations: servicesAnnotation,
	RunE:        runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, _ []string) error {
	if publishService == nil {
		return errors.New("publish service not configured")
	}

	cmd.Println("Publishing records...")
	report, err := publishService.RunPublish(cmd.Context())
	if err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	printReport(cmd, report)
	return nil
}
