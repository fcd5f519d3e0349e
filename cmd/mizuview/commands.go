package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/mizuview/internal/config"
	"github.com/unkn0wn-root/mizuview/internal/errdef"
	"github.com/unkn0wn-root/mizuview/internal/history"
	"github.com/unkn0wn-root/mizuview/internal/openapi"
	"github.com/unkn0wn-root/mizuview/internal/traffic"
	"github.com/unkn0wn-root/mizuview/internal/trafficstats"
)

const printWidth = 100

func newConfigCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print a template settings file",
		Long:  "Print a commented settings template, or write it to --file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(file) == "" {
				_, err := io.WriteString(cmd.OutOrStdout(), config.Template())
				return err
			}
			if err := config.WriteTemplate(file); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Template written to %s\n", file)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Write the template to this path")
	return cmd
}

type statsOptions struct {
	volume   bool
	protocol string
}

func newStatsCmd(root *rootOptions) *cobra.Command {
	var opts statsOptions
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print traffic statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := connect(cmd.Context(), cmd, root)
			if err != nil {
				return err
			}
			defer s.Close()
			setOutputProfile(cmd.OutOrStdout())

			pie, err := s.client.GetPieStats(cmd.Context())
			if err != nil {
				return err
			}
			timeline, err := s.client.GetTimelineStats(cmd.Context())
			if err != nil {
				return err
			}
			return writeStats(cmd.OutOrStdout(), pie, timeline, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.volume, "volume", false, "Show volume instead of request counts")
	cmd.Flags().StringVarP(&opts.protocol, "protocol", "p", trafficstats.AllProtocols, "Break one protocol down by method")
	return cmd
}

func writeStats(w io.Writer, pie []traffic.ProtocolStats, timeline []traffic.TimelineStats, opts statsOptions) error {
	mode := trafficstats.ModeRequests
	if opts.volume {
		mode = trafficstats.ModeVolume
	}
	protocol := strings.TrimSpace(opts.protocol)
	if protocol == "" {
		protocol = trafficstats.AllProtocols
	}
	bars := trafficstats.Breakdown(pie, mode, protocol)
	points := trafficstats.Timeline(timeline, mode, protocol)

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n\n", protocol, mode)
	b.WriteString(trafficstats.RenderBars(bars, mode, printWidth-40))
	fmt.Fprintf(&b, "\n  total %s\n\nTimeline\n\n", mode.Format(trafficstats.Total(bars)))
	b.WriteString(trafficstats.RenderTimeline(points, mode, printWidth-40))
	_, err := io.WriteString(w, b.String())
	return err
}

func newOASCmd(root *rootOptions) *cobra.Command {
	var (
		service string
		all     bool
	)
	cmd := &cobra.Command{
		Use:   "oas",
		Short: "List inferred OpenAPI services or print one of them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := connect(cmd.Context(), cmd, root)
			if err != nil {
				return err
			}
			defer s.Close()
			setOutputProfile(cmd.OutOrStdout())

			if all {
				docs, err := s.client.GetOASAllSpecs(cmd.Context())
				if err != nil {
					return err
				}
				return writeAllOAS(cmd.Context(), cmd.OutOrStdout(), docs)
			}
			// the subcommand is an explicit request, so the feature switch is implied
			catalogue := openapi.NewCatalogue(s.client, true)
			return writeOAS(cmd.Context(), cmd.OutOrStdout(), catalogue, service)
		},
	}
	cmd.Flags().StringVarP(&service, "service", "s", "", "Print the document of this service")
	cmd.Flags().BoolVar(&all, "all", false, "Print every service document")
	cmd.MarkFlagsMutuallyExclusive("service", "all")
	return cmd
}

// writeAllOAS renders every document in service order. A document that does
// not parse is reported inline and does not stop the others.
func writeAllOAS(ctx context.Context, w io.Writer, docs map[string]json.RawMessage) error {
	services := make([]string, 0, len(docs))
	for name := range docs {
		services = append(services, name)
	}
	sort.Strings(services)

	var b strings.Builder
	for _, name := range services {
		spec, err := openapi.Parse(ctx, name, docs[name])
		if err != nil {
			fmt.Fprintf(&b, "%s: %s\n\n", name, errdef.Message(err))
			continue
		}
		b.WriteString(openapi.Render(spec, "dark", printWidth))
	}
	if len(services) == 0 {
		b.WriteString("No services found\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeOAS(ctx context.Context, w io.Writer, catalogue *openapi.Catalogue, service string) error {
	if strings.TrimSpace(service) == "" {
		services, err := catalogue.Services(ctx)
		if err != nil {
			return err
		}
		if len(services) == 0 {
			_, err := io.WriteString(w, "No services found\n")
			return err
		}
		_, err = io.WriteString(w, strings.Join(services, "\n")+"\n")
		return err
	}
	spec, err := catalogue.Spec(ctx, service)
	if err != nil {
		return errdef.Wrap(errdef.CodeHTTP, err, "load spec for %s", service)
	}
	_, err = io.WriteString(w, openapi.Render(spec, "dark", printWidth))
	return err
}

// setOutputProfile drops colours when the output is not a terminal.
func setOutputProfile(w io.Writer) {
	lipgloss.SetColorProfile(termenv.NewOutput(w).EnvColorProfile())
}

func newLogoutCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session on the API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := connect(cmd.Context(), cmd, root)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.client.Logout(cmd.Context()); err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), "Logged out\n")
			return err
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [term]",
		Short: "List recent queries, optionally filtered by a search term",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := history.NewStore(config.HistoryPath(), 0)
			if err := store.Load(); err != nil {
				return err
			}
			defer store.Close()

			term := ""
			if len(args) == 1 {
				term = args[0]
			}
			entries, err := store.Search(cmd.Context(), term)
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}
			return writeHistory(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Show at most this many queries (0 for all)")
	return cmd
}

func writeHistory(w io.Writer, entries []history.Entry) error {
	if len(entries) == 0 {
		_, err := io.WriteString(w, "No queries recorded\n")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Query, humanize.Time(e.ExecutedAt), e.Server)
	}
	return tw.Flush()
}
