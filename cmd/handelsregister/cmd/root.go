// Package cmd implements the command line interface for querying the
// German company registry portal.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/twentylab/handelsregister/lib/bundesland"
	"github.com/twentylab/handelsregister/lib/restyutil"
	"github.com/twentylab/handelsregister/lib/scrapers/handelsregister"
	"github.com/twentylab/handelsregister/lib/searchcache"
	"github.com/twentylab/handelsregister/services/registry"
)

var (
	keywords  string
	matchMode string
	states    []string
	force     bool
	debug     bool
	asJson    bool
)

func init() {
	rootCmd.Flags().StringVarP(&keywords, "schlagwoerter", "s", "", "keywords to search for")
	rootCmd.MarkFlagRequired("schlagwoerter")
	rootCmd.Flags().StringVarP(&matchMode, "schlagwortOptionen", "o", "all",
		fmt.Sprintf("keyword match mode, one of: %s", strings.Join(handelsregister.MatchModes(), ", ")))
	rootCmd.Flags().StringSliceVarP(&states, "bundesland", "b", nil,
		"restrict the search to these state codes, e.g. BE,HH")
	rootCmd.Flags().BoolVarP(&force, "force", "f", false, "fetch a fresh result document even if one is cached")
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "dump the http exchanges with the portal to disk")
	rootCmd.Flags().BoolVarP(&asJson, "json", "j", false, "print results as json instead of a table")
}

var rootCmd = &cobra.Command{
	Use:   "handelsregister",
	Short: "handelsregister searches the German company registry portal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := buildQuery()
		if err != nil {
			return err
		}

		cache, err := searchcache.New(searchcache.DefaultDir())
		if err != nil {
			return err
		}

		openSession := func(debug bool) (registry.PortalSession, error) {
			opts := handelsregister.ClientOptions{}
			if debug {
				opts.DebugOutput = restyutil.NewFilesystemOutput("debug_http")
			}
			return handelsregister.NewClient(opts)
		}

		companies, err := registry.NewService(cache, openSession).Search(cmd.Context(), query)
		if err != nil {
			return err
		}

		if asJson {
			return printJson(companies)
		}
		printTable(companies)
		return nil
	},
}

func buildQuery() (registry.Query, error) {
	mode, err := handelsregister.ParseMatchMode(matchMode)
	if err != nil {
		return registry.Query{}, err
	}

	var codes []bundesland.Code
	for _, name := range states {
		code, ok := bundesland.Resolve(name)
		if !ok {
			return registry.Query{}, fmt.Errorf("unknown bundesland: %s", name)
		}
		codes = append(codes, code)
	}

	return registry.Query{
		Keywords:    keywords,
		Mode:        mode,
		States:      codes,
		BypassCache: force,
		Debug:       debug,
	}, nil
}

func printJson(companies []handelsregister.Company) error {
	out, err := json.MarshalIndent(companies, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func printTable(companies []handelsregister.Company) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Name", "Register", "Court", "State", "Status", "Documents"})

	for _, company := range companies {
		register := ""
		if company.RegisterNum != nil {
			register = *company.RegisterNum
		}
		t.AppendRow(table.Row{
			company.Name,
			register,
			company.Court,
			company.State,
			company.Status,
			company.Documents,
		})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()

	for _, company := range companies {
		if len(company.History) == 0 {
			continue
		}
		fmt.Printf("\nHistory of %s:\n", company.Name)
		for i, entry := range company.History {
			fmt.Printf("  %d) %s (%s)\n", i+1, entry.Name, entry.Location)
		}
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
