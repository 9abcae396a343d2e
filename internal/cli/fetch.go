package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/queryplane/internal/control"
	"github.com/vietddude/queryplane/internal/infra/api"
	"github.com/vietddude/queryplane/internal/query/fallback"
	"github.com/vietddude/queryplane/internal/query/keys"
)

var (
	fetchTimeout time.Duration
	auditFilter  keys.AuditFilter
)

type resourceFunc func(ctx context.Context, svc *api.Service, args []string) (any, error)

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

var resources = map[string]resourceFunc{
	"users": func(ctx context.Context, s *api.Service, args []string) (any, error) {
		if id := arg(args, 0); id != "" {
			return s.User(ctx, id)
		}
		return s.Users(ctx)
	},
	"overview": func(ctx context.Context, s *api.Service, _ []string) (any, error) {
		return s.AnalyticsOverview(ctx)
	},
	"revenue": func(ctx context.Context, s *api.Service, args []string) (any, error) {
		period := arg(args, 0)
		if period == "" {
			period = "30d"
		}
		return s.Revenue(ctx, period)
	},
	"files": func(ctx context.Context, s *api.Service, args []string) (any, error) {
		return s.Files(ctx, arg(args, 0))
	},
	"file": func(ctx context.Context, s *api.Service, args []string) (any, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("file requires an id")
		}
		return s.FileContent(ctx, args[0])
	},
	"members": func(ctx context.Context, s *api.Service, _ []string) (any, error) {
		return s.TeamMembers(ctx)
	},
	"invitations": func(ctx context.Context, s *api.Service, _ []string) (any, error) {
		return s.Invitations(ctx)
	},
	"notifications": func(ctx context.Context, s *api.Service, _ []string) (any, error) {
		return s.Notifications(ctx)
	},
	"unread": func(ctx context.Context, s *api.Service, _ []string) (any, error) {
		return s.UnreadCount(ctx)
	},
	"audit-logs": func(ctx context.Context, s *api.Service, args []string) (any, error) {
		page := 1
		if p := arg(args, 0); p != "" {
			n, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("invalid page %q: %w", p, err)
			}
			page = n
		}
		return s.AuditLogs(ctx, page, auditFilter)
	},
	"monitoring": func(ctx context.Context, s *api.Service, _ []string) (any, error) {
		return s.MonitoringStats(ctx)
	},
	"endpoints": func(ctx context.Context, s *api.Service, _ []string) (any, error) {
		return s.MonitoringEndpoints(ctx)
	},
}

func resourceNames() []string {
	names := make([]string, 0, len(resources))
	for name := range resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var fetchCmd = &cobra.Command{
	Use:       "fetch <resource> [args]",
	Short:     "Fetch one resource and print it as JSON",
	Long:      "Fetch one resource through the query client and print it as JSON.\n\nResources: " + strings.Join(resourceNames(), ", "),
	Args:      cobra.MinimumNArgs(1),
	ValidArgs: resourceNames(),
	Run:       runFetch,
}

func init() {
	fetchCmd.Flags().DurationVar(&fetchTimeout, "timeout", time.Minute, "overall timeout including retries")
	fetchCmd.Flags().StringVar(&auditFilter.Actor, "actor", "", "audit-logs: filter by actor")
	fetchCmd.Flags().StringVar(&auditFilter.Action, "action", "", "audit-logs: filter by action")
	fetchCmd.Flags().StringVar(&auditFilter.From, "from", "", "audit-logs: start date")
	fetchCmd.Flags().StringVar(&auditFilter.To, "to", "", "audit-logs: end date")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) {
	fn, ok := resources[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown resource %q, expected one of: %s\n", args[0], strings.Join(resourceNames(), ", "))
		os.Exit(2)
	}

	cfg := loadConfig()
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	app, err := control.NewApp(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize App", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = app.Stop(context.Background())
	}()

	out, err := fn(ctx, app.Service, args[1:])
	if err != nil {
		fb := fallback.Select(err, nil)
		fmt.Fprintf(os.Stderr, "%s: %s\n", fb.Label, fb.Description)
		slog.Debug("Fetch failed", "resource", args[0], "category", fb.Category, "error", err)
		_ = app.Stop(context.Background())
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		slog.Error("Failed to encode result", "error", err)
	}
}
