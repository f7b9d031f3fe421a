package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/simon020286/go-autopilot/config"
	"github.com/simon020286/go-autopilot/moodle"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var catalogueModule string

var catalogueCmd = &cobra.Command{
	Use:   "catalogue [workflow.yaml]",
	Short: "List the web service operations available to the token",
	Long: `catalogue connects to the site and prints the operations enabled for
the token, split into module, verb and resource, with the HTTP method used
to dispatch them. The site url comes from --url or from the environment of
the given workflow file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		baseURL := settings.URL
		if baseURL == "" && len(args) == 1 {
			spec, err := config.LoadWorkflowFile(args[0])
			if err != nil {
				return err
			}
			baseURL = spec.Environment.URL
		}
		if baseURL == "" {
			return errors.New("no site url, use --url or pass a workflow file")
		}

		session, err := moodle.New(baseURL, moodle.WithLogger(logger), moodle.WithTimeout(settings.RequestTimeout))
		if err != nil {
			return err
		}
		if err := session.Connect(cmd.Context(), settings.Token); err != nil {
			return err
		}
		user := session.User()
		logger.Info("connected", zap.String("site", user.SiteName), zap.String("user", user.Username))

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleLight)
		t.SetTitle(fmt.Sprintf("%s (%s)", user.SiteName, user.Username))
		t.AppendHeader(table.Row{"Module", "Verb", "Resource", "Short", "Method", "Operation"})

		cat := session.Catalogue()
		shown := 0
		for _, op := range cat.Operations() {
			if catalogueModule != "" && op.Module != catalogueModule {
				continue
			}
			method := text.FgGreen.Sprint(op.Method)
			if op.IsWrite() {
				method = text.FgYellow.Sprint(op.Method)
			}
			t.AppendRow(table.Row{op.Module, op.Verb, op.Resource, shortFor(cat, op), method, op.Name})
			shown++
		}
		t.AppendFooter(table.Row{"", "", "", "", "Total", shown})
		t.Render()
		return nil
	},
}

func init() {
	catalogueCmd.Flags().StringVarP(&catalogueModule, "module", "m", "", "Only show operations of this module, e.g. mod_assign")
}

// shortFor returns the abbreviation that resolves to op, if any.
func shortFor(cat *moodle.Catalogue, op moodle.Operation) string {
	var short []string
	for abbr, name := range cat.Abbreviations(op.Module, op.Verb) {
		if name == op.Name {
			short = append(short, abbr)
		}
	}
	return strings.Join(short, ", ")
}
