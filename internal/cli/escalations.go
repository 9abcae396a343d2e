package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/queryplane/internal/control"
)

var escalationLimit int

var escalationsCmd = &cobra.Command{
	Use:   "escalations",
	Short: "List the most recent escalated failures",
	Run:   runEscalations,
}

func init() {
	escalationsCmd.Flags().IntVar(&escalationLimit, "limit", 20, "maximum number of escalations to show")
	rootCmd.AddCommand(escalationsCmd)
}

func runEscalations(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx := context.Background()
	app, err := control.NewApp(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize App", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = app.Stop(ctx)
	}()

	records, err := app.Escalations.List(ctx, escalationLimit)
	if err != nil {
		slog.Error("Failed to list escalations", "error", err)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "OCCURRED\tRESOURCE\tCATEGORY\tSTATUS\tRETRIES\tKEY\tMESSAGE")
	for _, e := range records {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			e.OccurredAt.Local().Format(time.DateTime),
			e.Resource,
			e.Category,
			e.Status,
			e.Attempts,
			strings.Join(e.Key, "/"),
			e.Message,
		)
	}
	_ = w.Flush()
}
