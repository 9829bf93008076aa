package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driving"
)

var fetchFull bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one fetch cycle",
	Long: `Fetches issues and pages from every configured source, analyses their
attachments and upserts the raw records into the source store.

The first cycle against an empty store fetches everything. Later cycles
fetch items updated since the previous UTC day unless --full is given.`,
	Annotations: servicesAnnotation,
	RunE:        runFetch,
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchFull, "full", false, "fetch everything regardless of store contents")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, _ []string) error {
	if fetchService == nil {
		return errors.New("fetch service not configured")
	}

	cmd.Println("Fetching from sources...")
	report, err := fetchService.RunFetch(cmd.Context(), driving.FetchOptions{ForceFull: fetchFull})
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	printReport(cmd, report)
	return nil
}

func printReport(cmd *cobra.Command, r *domain.CycleReport) {
	if r == nil {
		return
	}
	if r.Stage == domain.StageFetch {
		mode := "incremental"
		if r.FullSync {
			mode = "full"
		}
		cmd.Printf("Fetch complete (%s): %d read, %d written, %d failed in %s\n",
			mode, r.Read, r.Written, r.Failed, r.Duration().Round(time.Millisecond))
		for _, s := range r.Sources {
			if s.Error != "" {
				cmd.Printf("  %-12s %s  FAILED: %s\n", s.Name, s.Window, s.Error)
				continue
			}
			cmd.Printf("  %-12s %s  %d records\n", s.Name, s.Window, s.Fetched)
		}
		return
	}
	cmd.Printf("Publish complete: %d read, %d written, %d failed in %s\n",
		r.Read, r.Written, r.Failed, r.Duration().Round(time.Millisecond))
}
