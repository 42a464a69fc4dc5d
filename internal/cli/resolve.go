package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/alvarorichard/vidresolve/internal/locator"
	"github.com/alvarorichard/vidresolve/internal/models"
	"github.com/alvarorichard/vidresolve/internal/resolver"
	"github.com/alvarorichard/vidresolve/internal/util"
)

type resolveOptions struct {
	file        string
	locatorName string
	referer     string
	offline     bool
	asJSON      bool
	best        bool
	headers     bool
	trace       bool
}

func loadCatalog(root *rootOptions) (*locator.Catalog, error) {
	if root.catalog == "" {
		return nil, errors.Errorf("no locator catalog, pass --catalog or set %s", CatalogEnv)
	}
	return locator.LoadFile(root.catalog)
}

func newResolveCommand(root *rootOptions) *cobra.Command {
	opts := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve <embed-url>",
		Short: "Resolve an embed page into playable variants",
		Long: "Resolve an embed page into playable variants.\n\n" +
			"The page is fetched unless --file supplies it. The locator is picked by\n" +
			"host from the catalog unless --locator names one.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, root, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "read the page from a file (- for stdin) instead of fetching it")
	f.StringVarP(&opts.locatorName, "locator", "l", "", "locator name, overrides the host lookup")
	f.StringVar(&opts.referer, "referer", "", "Referer sent when fetching the page")
	f.BoolVar(&opts.offline, "offline", false, "never touch the network; HLS masters are not expanded")
	f.BoolVar(&opts.asJSON, "json", false, "print variants as JSON")
	f.BoolVar(&opts.best, "best", false, "print only the highest quality variant")
	f.BoolVar(&opts.headers, "headers", false, "print the playback headers of every variant")
	f.BoolVar(&opts.trace, "trace", false, "print the resolution stages reached")
	return cmd
}

func runResolve(cmd *cobra.Command, root *rootOptions, opts *resolveOptions, pageURL string) error {
	cat, err := loadCatalog(root)
	if err != nil {
		return err
	}

	var spec *locator.Spec
	var ok bool
	if opts.locatorName != "" {
		spec, ok = cat.Get(opts.locatorName)
	} else {
		spec, ok = cat.Lookup(pageURL)
	}
	if !ok {
		return errors.Errorf("no locator for %s", pageURL)
	}

	page := resolver.Page{URL: pageURL, Referer: opts.referer}
	if opts.file != "" {
		if page.Text, err = readInput(cmd, []string{opts.file}); err != nil {
			return err
		}
	}

	var fetcher models.Fetcher
	if !opts.offline {
		fetcher = util.NewHTTPFetcher()
	} else if page.Text == "" {
		return errors.New("--offline needs --file")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), root.timeout)
	defer cancel()

	r := resolver.New(fetcher, resolver.Options{Timeout: root.timeout})
	variants, trace := r.NewBatch().ResolveTrace(ctx, page, spec)

	util.Debug("resolution finished", "locator", spec.Name, "trace", trace.String())
	if opts.trace {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", spec.Name, trace.String())
	}

	if len(variants) == 0 {
		msg := fmt.Sprintf("no variants found with locator %s (stopped at %s)", spec.Name, trace.Last())
		if trace.Err != nil {
			return errors.Wrap(trace.Err, msg)
		}
		return errors.New(msg)
	}

	if opts.best {
		variants = []models.VideoVariant{models.Best(variants)}
	}
	return printVariants(cmd.OutOrStdout(), variants, opts.asJSON, opts.headers)
}

func newLocatorsCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "locators",
		Short: "List the locators of the catalog and the hosts they handle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := loadCatalog(root)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, s := range cat.Locators {
				kind := "plain"
				if s.Encryption != nil {
					kind = "aes/" + s.Encryption.Password.Kind
				}
				if _, err := fmt.Fprintf(w, "%s %-8s %s\n", labelStyle.Render(s.Name), s.MediaKind(), kind); err != nil {
					return err
				}
				if len(s.Hosts) > 0 {
					_, _ = fmt.Fprintf(w, "    %s\n", strings.Join(s.Hosts, ", "))
				}
			}
			return nil
		},
	}
}
