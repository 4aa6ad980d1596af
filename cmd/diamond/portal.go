package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/totegamma/diamond-portal"
	"github.com/totegamma/diamond-portal/client"
	"github.com/totegamma/diamond-portal/internal/domain"
	"github.com/totegamma/diamond-portal/internal/infra/cache"
	"github.com/totegamma/diamond-portal/internal/infra/database"
	"github.com/totegamma/diamond-portal/internal/infra/gateway"
	"github.com/totegamma/diamond-portal/internal/portal"
	"github.com/totegamma/diamond-portal/internal/present/rest/presenter"
)

const searchTimeout = 15 * time.Second

var (
	_ portal.DataSource       = (*client.Client)(nil)
	_ portal.RecordWriter     = (*client.Client)(nil)
	_ portal.DataSource       = (*portal.FixtureSource)(nil)
	_ portal.EndpointSearcher = (*gateway.TransferGateway)(nil)
	_ portal.FileLister       = (*gateway.TransferGateway)(nil)
)

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Match a keyword against the registry and the endpoint search",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Search interactively, one keyword per line",
	RunE:  runBrowse,
}

var createCmd = &cobra.Command{
	Use:   "create <collection-id>",
	Short: "Register a collection for the current user",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreate,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <collection-id>",
	Short: "Remove the current user's records of a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	searchCmd.Flags().Bool("all", false, "include endpoints without permissions")
	createCmd.Flags().String("name", "", "record name")
	createCmd.Flags().String("description", "", "record description")
	createCmd.Flags().String("link", "", "record link")
	createCmd.Flags().Bool("strict", false, "validate the form before submitting")
}

type portalDeps struct {
	portal   *portal.Portal
	registry *client.Client
	fixture  *portal.FixtureSource
	userID   string
}

// resolveUser returns --user, or the subject of the configured token.
func resolveUser(ctx context.Context) (string, error) {
	if user := viper.GetString("user"); user != "" {
		return user, nil
	}
	if cfg.Auth.Token == "" || cfg.Auth.UserinfoURL == "" {
		return "", nil
	}
	info, err := gateway.NewIdentityGateway(cfg.Auth.UserinfoURL).UserInfo(ctx, cfg.Auth.Token)
	if err != nil {
		return "", fmt.Errorf("resolving current user: %w", err)
	}
	return info.Sub, nil
}

func newSearchCache() gateway.SearchCache {
	switch cfg.Transfer.CacheType {
	case "memory":
		return cache.NewMemorySearchCache(cfg.Transfer.CacheTTL())
	case "memcached":
		return cache.NewMemcachedSearchCache(database.NewMemcached(cfg.Memcached.Addr), cfg.Transfer.CacheTTL())
	default:
		return nil
	}
}

func newPortal(ctx context.Context, opts portal.Options) (*portalDeps, error) {
	user, err := resolveUser(ctx)
	if err != nil {
		return nil, err
	}

	deps := &portalDeps{userID: user}

	var source portal.DataSource
	var writer portal.RecordWriter
	switch cfg.Portal.Source {
	case "fixture":
		deps.fixture = portal.NewFixtureSource(cfg.Portal.FixturePath)
		source = deps.fixture
	default:
		deps.registry = client.New(cfg.Portal.RegistryURL).WithToken(cfg.Auth.Token)
		source = deps.registry
		writer = deps.registry
	}

	searcher := gateway.NewTransferGateway(cfg.Transfer.BaseURL, cfg.Auth.Token, newSearchCache())

	opts.Mode = portal.Mode(cfg.Portal.Mode)
	opts.UserID = user
	opts.Throttle = cfg.Transfer.Throttle()
	opts.Limit = cfg.Transfer.SearchLimit
	if opts.Validation == "" {
		opts.Validation = portal.Validation(cfg.Portal.Validation)
	}

	deps.portal = portal.New(source, writer, searcher, opts)
	return deps, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), searchTimeout)
	defer cancel()

	done := make(chan portal.Results, 1)
	deps, err := newPortal(ctx, portal.Options{
		OnUpdate: func(res portal.Results) {
			if !res.Pending {
				select {
				case done <- res:
				default:
				}
			}
		},
	})
	if err != nil {
		return err
	}
	defer deps.portal.Close()

	if all, _ := cmd.Flags().GetBool("all"); all {
		deps.portal.SetScope(ctx, diamond.ScopeAll)
	}
	if err := deps.portal.Load(ctx); err != nil {
		return err
	}

	// Load reports an idle portal before the keyword is set
	select {
	case <-done:
	default:
	}

	deps.portal.SetKeyword(ctx, args[0])

	var res portal.Results
	select {
	case res = <-done:
	case <-ctx.Done():
		res = deps.portal.Results()
	}

	printResults(cmd.OutOrStdout(), res)
	return nil
}

func runBrowse(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	deps, err := newPortal(ctx, portal.Options{
		OnUpdate: func(res portal.Results) {
			if res.Keyword != "" && !res.Pending {
				printResults(out, res)
			}
		},
		OnSelect: func(ep diamond.Endpoint) {
			fmt.Fprintf(out, "selected %s (%s)\n", ep.DisplayName(), ep.ID())
		},
	})
	if err != nil {
		return err
	}
	defer deps.portal.Close()

	if err := deps.portal.Load(ctx); err != nil {
		slog.WarnContext(ctx, "starting with an empty registry", slog.String("error", err.Error()), slog.String("module", "main"))
	}

	reload := func() {
		if err := deps.portal.Load(ctx); err != nil {
			slog.WarnContext(ctx, "reload failed", slog.String("error", err.Error()), slog.String("module", "main"))
		}
	}
	switch {
	case deps.fixture != nil:
		if err := deps.fixture.Watch(ctx, reload); err != nil {
			slog.WarnContext(ctx, "not watching fixture", slog.String("error", err.Error()), slog.String("module", "main"))
		}
	case deps.registry != nil:
		go func() {
			err := deps.registry.Subscribe(ctx, deps.userID, func(domain.RegistryEvent) { reload() })
			if err != nil {
				slog.DebugContext(ctx, "realtime unavailable", slog.String("error", err.Error()), slog.String("module", "main"))
			}
		}()
	}

	fmt.Fprintln(out, "type a keyword, /select N, /scope all|mine, /create ID NAME LINK or /quit")
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "/") {
			deps.portal.SetKeyword(ctx, line)
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "/quit":
			return nil
		case "/scope":
			scope := diamond.ScopeHideNoPermissions
			if len(fields) > 1 && fields[1] == "all" {
				scope = diamond.ScopeAll
			}
			deps.portal.SetScope(ctx, scope)
		case "/select":
			if len(fields) < 2 {
				fmt.Fprintln(out, "usage: /select N")
				continue
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Fprintln(out, "usage: /select N")
				continue
			}
			selectNth(deps.portal, n)
		case "/create":
			if len(fields) < 4 {
				fmt.Fprintln(out, "usage: /create ID NAME LINK")
				continue
			}
			cctx := deps.portal.ContextFromEndpoint(diamond.Endpoint{"id": fields[1]})
			rec, err := deps.portal.Create(ctx, cctx, portal.CreateForm{Name: fields[2], Link: fields[3]})
			if err != nil {
				fmt.Fprintf(out, "create failed: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "created %s\n", rec.ID)
		default:
			fmt.Fprintf(out, "unknown command %s\n", fields[0])
		}
	}
	return scanner.Err()
}

// selectNth picks the n-th listed result, counting local records first.
func selectNth(p *portal.Portal, n int) {
	res := p.Results()
	switch {
	case n >= 1 && n <= len(res.Local):
		p.SelectRecord(res.Local[n-1])
	case n > len(res.Local) && n <= len(res.Local)+len(res.Remote):
		p.Select(res.Remote[n-len(res.Local)-1])
	}
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	opts := portal.Options{}
	if strict, _ := cmd.Flags().GetBool("strict"); strict {
		opts.Validation = portal.ValidateStrict
	}
	deps, err := newPortal(ctx, opts)
	if err != nil {
		return err
	}
	defer deps.portal.Close()

	name, _ := cmd.Flags().GetString("name")
	description, _ := cmd.Flags().GetString("description")
	link, _ := cmd.Flags().GetString("link")

	cctx := deps.portal.ContextFromEndpoint(diamond.Endpoint{"id": args[0]})
	rec, err := deps.portal.Create(ctx, cctx, portal.CreateForm{
		Name:        name,
		Description: description,
		Link:        link,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", presenter.MessageAdded, rec.ID)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	deps, err := newPortal(ctx, portal.Options{})
	if err != nil {
		return err
	}
	defer deps.portal.Close()

	if deps.userID == "" {
		return fmt.Errorf("delete needs --user or a token")
	}
	if err := deps.portal.Delete(ctx, args[0]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}

func printResults(w io.Writer, res portal.Results) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	n := 0
	fmt.Fprintf(tw, "#\tORIGIN\tID\tNAME\tLINK\n")
	for _, rec := range res.Local {
		n++
		fmt.Fprintf(tw, "%d\tregistry\t%s\t%s\t%s\n", n, rec.ID, rec.Name, rec.Link)
	}
	for _, ep := range res.Remote {
		n++
		fmt.Fprintf(tw, "%d\tsearch\t%s\t%s\t%s\n", n, ep.ID(), ep.DisplayName(), diamond.DomainFromEndpoint(ep))
	}
	if n == 0 {
		fmt.Fprintf(tw, "-\t-\tno matches for %q\t\t\n", res.Keyword)
	}
}
