package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"college-predictor/internal/cutoff"
	"college-predictor/internal/render"
)

var pageFlags struct {
	rank     int
	category string
	group    string
	page     int
}

var exportFlags struct {
	rank     int
	category string
	group    string
	out      string
}

// pageCmd prints one page of reconciled offers
var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "Print one page of offers",
	RunE:  runPage,
}

// exportCmd prints or renders the export set
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the export set or write it as a PDF",
	RunE:  runExport,
}

// groupsCmd lists the program groups
var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List program groups and their programs",
	RunE:  runGroups,
}

func runPage(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	page, err := a.Service().GetPage(cmd.Context(), cutoff.Request{
		Rank:     pageFlags.rank,
		Category: pageFlags.category,
		Group:    pageFlags.group,
	}, pageFlags.page)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), page)
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	offers, err := a.Service().GetExportSet(cmd.Context(), cutoff.Request{
		Rank:     exportFlags.rank,
		Category: exportFlags.category,
		Group:    exportFlags.group,
	})
	if err != nil {
		return err
	}

	if exportFlags.out == "" {
		return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
			"offers": offers,
			"count":  len(offers),
		})
	}

	f, err := os.Create(exportFlags.out)
	if err != nil {
		return fmt.Errorf("create %s: %w", exportFlags.out, err)
	}
	renderErr := render.NewPDFRenderer().Render(f, render.ExportDocument{
		Category: exportFlags.category,
		Offers:   offers,
	})
	if err := f.Close(); err != nil && renderErr == nil {
		renderErr = err
	}
	if renderErr != nil {
		return renderErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d offers on %d pages to %s\n", len(offers), render.PageCount(len(offers)), exportFlags.out)
	return nil
}

func runGroups(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
		"groups":     a.Service().Catalog().Groups(),
		"categories": a.Service().Categories().List(),
	})
}
