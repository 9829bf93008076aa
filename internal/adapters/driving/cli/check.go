package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:         "check",
	Short:       "Validate source credentials",
	Annotations: servicesAnnotation,
	RunE:        runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	if validator == nil {
		return errors.New("fetch service not configured")
	}

	results := validator.Validate(cmd.Context())
	if len(results) == 0 {
		cmd.Println("No sources configured.")
		return nil
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := 0
	for _, name := range names {
		if err := results[name]; err != nil {
			failed++
			cmd.Printf("  %-12s FAILED: %v\n", name, err)
			continue
		}
		cmd.Printf("  %-12s ok\n", name)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed validation", failed, len(names))
	}
	return nil
}
