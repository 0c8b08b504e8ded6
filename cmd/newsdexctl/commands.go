package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/newsdex"
	"github.com/kailas-cloud/newsdex/internal/config"
	"github.com/kailas-cloud/newsdex/internal/version"
)

// engine is the part of *newsdex.Client the commands use.
type engine interface {
	Search(ctx context.Context, q newsdex.Query) (newsdex.SearchResponse, error)
	Suggest(ctx context.Context, prefix string, size int) ([]newsdex.Suggestion, error)
	Document(ctx context.Context, id string) (newsdex.Document, error)
	Documents(ctx context.Context, cursor string, limit int) (newsdex.DocumentPage, error)
	TopGeoreferences(ctx context.Context, size int) ([]newsdex.GeoreferenceCount, error)
	Distribution(ctx context.Context, interval, from, to string) ([]newsdex.Bucket, error)
	Stats(ctx context.Context) (newsdex.IndexStats, error)
	Health(ctx context.Context) newsdex.HealthStatus
	EnsureIndex(ctx context.Context) (bool, error)
	DropIndex(ctx context.Context) error
	Close()
}

type openFunc func(ctx context.Context, g *globalFlags) (engine, error)

type globalFlags struct {
	configPath string
	env        string
	redis      []string
	jsonOutput bool
	verbose    bool
}

// cli binds the commands to one lazily opened engine.
type cli struct {
	flags globalFlags
	open  openFunc
}

// run opens the engine, calls fn and closes the engine.
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, e engine, out io.Writer) error) error {
	ctx := cmd.Context()
	e, err := c.open(ctx, &c.flags)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(ctx, e, cmd.OutOrStdout())
}

// emit prints v as JSON with --json, otherwise through the text renderer.
func (c *cli) emit(out io.Writer, v any, text func(w io.Writer)) error {
	if c.flags.jsonOutput {
		return printJSON(out, v)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	text(tw)
	return tw.Flush()
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCmd(open openFunc) *cobra.Command {
	c := &cli{open: open}

	root := &cobra.Command{
		Use:   "newsdexctl",
		Short: "Query a newsdex hybrid news index",
		Long: `newsdexctl runs hybrid lexical and semantic searches over an enriched
news index, narrowed by the dates and places the articles mention.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&c.flags.configPath, "config", "c", "", "Path to a YAML config file")
	pf.StringVar(&c.flags.env, "env", config.GetEnv(), "Environment whose config/<env>.yaml is loaded")
	pf.StringSliceVar(&c.flags.redis, "redis", nil, "Redis addresses; overrides the config file")
	pf.BoolVarP(&c.flags.jsonOutput, "json", "j", false, "Output as JSON")
	pf.BoolVarP(&c.flags.verbose, "verbose", "v", false, "Log backend calls to stderr")

	root.AddCommand(
		c.versionCmd(),
		c.searchCmd(),
		c.suggestCmd(),
		c.docCmd(),
		c.docsCmd(),
		c.georefsCmd(),
		c.distributionCmd(),
		c.statsCmd(),
		c.healthCmd(),
		c.schemaCmd(),
	)
	return root
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if c.flags.jsonOutput {
				return printJSON(out, map[string]string{
					"version": version.Version,
					"commit":  version.Commit,
					"date":    version.Date,
				})
			}
			_, err := fmt.Fprintf(out, "newsdexctl %s\n", version.String())
			return err
		},
	}
}

func (c *cli) searchCmd() *cobra.Command {
	var (
		q        newsdex.Query
		alpha    float64
		lat, lon float64
		radius   float64
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid search",
		Example: `  newsdexctl search "oil prices" --alpha 0.7 --from 1987-02 --to 1987-03
  newsdexctl search opec --lat 29.76 --lon -95.37 --radius-km 500`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Text = strings.Join(args, " ")
			fs := cmd.Flags()
			if fs.Changed("alpha") {
				q.Alpha = &alpha
			}
			switch n := countChanged(cmd, "lat", "lon", "radius-km"); n {
			case 0:
			case 3:
				q.Near = &newsdex.Area{Lat: lat, Lon: lon, RadiusKm: radius}
			default:
				return errors.New("--lat, --lon and --radius-km must be given together")
			}

			return c.run(cmd, func(ctx context.Context, e engine, out io.Writer) error {
				resp, err := e.Search(ctx, q)
				if err != nil {
					return err
				}
				return c.emit(out, resp, func(w io.Writer) { renderSearch(w, resp) })
			})
		},
	}
	f := cmd.Flags()
	f.IntVarP(&q.TopK, "top-k", "k", 0, "Number of results (default from config)")
	f.Float64VarP(&alpha, "alpha", "a", 0, "Lexical weight in [0,1] (default from config)")
	f.StringVar(&q.DateFrom, "from", "", "Earliest mentioned date: 2006, 2006-01 or 2006-01-02")
	f.StringVar(&q.DateTo, "to", "", "Latest mentioned date: 2006, 2006-01 or 2006-01-02")
	f.Float64Var(&lat, "lat", 0, "Latitude of the area center")
	f.Float64Var(&lon, "lon", 0, "Longitude of the area center")
	f.Float64Var(&radius, "radius-km", 0, "Area radius in kilometers")
	f.StringVarP(&q.Georeference, "georeference", "g", "", "Only documents tagged with this place name")
	return cmd
}

func countChanged(cmd *cobra.Command, names ...string) int {
	n := 0
	for _, name := range names {
		if cmd.Flags().Changed(name) {
			n++
		}
	}
	return n
}

func renderSearch(w io.Writer, resp newsdex.SearchResponse) {
	if resp.Degraded {
		fmt.Fprintf(w, "degraded: %s source unavailable\n", resp.DegradedSource)
	}
	fmt.Fprintln(w, "RANK\tSCORE\tLEX\tSEM\tID\tTITLE")
	for i, r := range resp.Results {
		fmt.Fprintf(w, "%d\t%.4f\t%.4f\t%.4f\t%s\t%s\n",
			i+1, r.Score, r.LexicalScore, r.SemanticScore, r.ID, r.Title)
	}
	fmt.Fprintf(w, "%d results (lexical hits %d, semantic hits %d)\n",
		len(resp.Results), resp.LexicalHits, resp.SemanticHits)
}

func (c *cli) suggestCmd() *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "suggest <prefix>",
		Short: "Complete a title prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, e engine, out io.Writer) error {
				items, err := e.Suggest(ctx, args[0], size)
				if err != nil {
					return err
				}
				return c.emit(out, items, func(w io.Writer) {
					for _, s := range items {
						fmt.Fprintf(w, "%s\t%s\n", s.ID, s.Title)
					}
				})
			})
		},
	}
	cmd.Flags().IntVarP(&size, "size", "n", 0, "Maximum number of suggestions")
	return cmd
}

func (c *cli) docCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doc <id>",
		Short: "Show one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, e engine, out io.Writer) error {
				d, err := e.Document(ctx, args[0])
				if err != nil {
					return err
				}
				return c.emit(out, d, func(w io.Writer) { renderDocument(w, d) })
			})
		},
	}
}

func renderDocument(w io.Writer, d newsdex.Document) {
	fmt.Fprintf(w, "id:\t%s\n", d.ID)
	fmt.Fprintf(w, "title:\t%s\n", d.Title)
	if !d.PublishedAt.IsZero() {
		fmt.Fprintf(w, "published:\t%s\n", d.PublishedAt.Format("2006-01-02"))
	}
	dates := make([]string, len(d.Dates))
	for i, m := range d.Dates {
		dates[i] = m.String()
	}
	fmt.Fprintf(w, "dates:\t%s\n", strings.Join(dates, ", "))
	places := make([]string, len(d.Points))
	for i, p := range d.Points {
		places[i] = fmt.Sprintf("%s (%.4f, %.4f)", p.Name, p.Lat, p.Lon)
	}
	fmt.Fprintf(w, "places:\t%s\n", strings.Join(places, ", "))
	fmt.Fprintf(w, "georeferences:\t%s\n", strings.Join(d.Georeferences, ", "))
	fmt.Fprintf(w, "\n%s\n", d.Body)
}

func (c *cli) docsCmd() *cobra.Command {
	var (
		cursor string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List stored documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, e engine, out io.Writer) error {
				page, err := e.Documents(ctx, cursor, limit)
				if err != nil {
					return err
				}
				return c.emit(out, page, func(w io.Writer) {
					for _, d := range page.Documents {
						fmt.Fprintf(w, "%s\t%s\n", d.ID, d.Title)
					}
					if page.NextCursor != "" {
						fmt.Fprintf(w, "next cursor: %s (total %d)\n", page.NextCursor, page.Total)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&cursor, "cursor", "", "Cursor returned by the previous page")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Page size")
	return cmd
}

func (c *cli) georefsCmd() *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "georefs",
		Short: "List the most mentioned places",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, e engine, out io.Writer) error {
				items, err := e.TopGeoreferences(ctx, size)
				if err != nil {
					return err
				}
				return c.emit(out, items, func(w io.Writer) {
					for _, g := range items {
						fmt.Fprintf(w, "%d\t%s\n", g.Count, g.Name)
					}
				})
			})
		},
	}
	cmd.Flags().IntVarP(&size, "size", "n", 0, "Number of places")
	return cmd
}

func (c *cli) distributionCmd() *cobra.Command {
	var interval, from, to string
	cmd := &cobra.Command{
		Use:   "distribution",
		Short: "Count documents per hour, day or month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, e engine, out io.Writer) error {
				buckets, err := e.Distribution(ctx, interval, from, to)
				if err != nil {
					return err
				}
				return c.emit(out, buckets, func(w io.Writer) {
					for _, b := range buckets {
						fmt.Fprintf(w, "%s\t%d\n", b.Start.Format("2006-01-02 15:04"), b.Count)
					}
				})
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&interval, "interval", "i", "day", "Bucket size: hour, day or month")
	f.StringVar(&from, "from", "", "Start date")
	f.StringVar(&to, "to", "", "End date")
	return cmd
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, e engine, out io.Writer) error {
				st, err := e.Stats(ctx)
				if err != nil {
					return err
				}
				return c.emit(out, st, func(w io.Writer) {
					fmt.Fprintf(w, "index:\t%s\n", st.Index)
					fmt.Fprintf(w, "documents:\t%d\n", st.Documents)
					fmt.Fprintf(w, "dimensions:\t%d\n", st.Dimensions)
					fmt.Fprintf(w, "indexing:\t%t (%.1f%%)\n", st.Indexing, st.PercentIndexed*100)
				})
			})
		},
	}
}

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the database, the index and the embedding provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, e engine, out io.Writer) error {
				h := e.Health(ctx)
				if err := c.emit(out, h, func(w io.Writer) {
					fmt.Fprintf(w, "status:\t%s\n", h.Status)
					for name, res := range h.Checks {
						fmt.Fprintf(w, "%s:\t%s\n", name, res)
					}
				}); err != nil {
					return err
				}
				if h.Status == "error" {
					return errors.New("unhealthy")
				}
				return nil
			})
		},
	}
}

func (c *cli) schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create or drop the search index schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "Create the index when it is missing",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.run(cmd, func(ctx context.Context, e engine, out io.Writer) error {
					created, err := e.EnsureIndex(ctx)
					if err != nil {
						return err
					}
					return c.emit(out, map[string]bool{"created": created}, func(w io.Writer) {
						if created {
							fmt.Fprintln(w, "index created")
						} else {
							fmt.Fprintln(w, "index already exists")
						}
					})
				})
			},
		},
		&cobra.Command{
			Use:   "drop",
			Short: "Drop the index, keeping stored documents",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.run(cmd, func(ctx context.Context, e engine, out io.Writer) error {
					if err := e.DropIndex(ctx); err != nil {
						return err
					}
					return c.emit(out, map[string]bool{"dropped": true}, func(w io.Writer) {
						fmt.Fprintln(w, "index dropped")
					})
				})
			},
		},
	)
	return cmd
}
