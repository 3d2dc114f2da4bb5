package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/brettericmartin/teed-sub011/internal/completeness"
	"github.com/brettericmartin/teed-sub011/internal/product"
)

func formatConfidence(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func renderProducts(out io.Writer, products []product.ValidatedProduct) {
	if len(products) == 0 {
		fmt.Fprintln(out, "No products identified")
		return
	}
	rows := make([][]string, 0, len(products))
	for i, p := range products {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			p.DisplayName(),
			p.Category,
			formatConfidence(p.Confidence),
			formatConfidence(p.FinalConfidence),
			string(p.Validation.Recommendation),
			sourcesLabel(p.MergedCandidate),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Product", "Category", "Confidence", "Final", "Verdict", "Sources"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	))
	for i, p := range products {
		if len(p.Links) == 0 {
			continue
		}
		fmt.Fprintf(out, "%d. %s\n", i+1, p.DisplayName())
		for _, link := range p.Links {
			label := link.Merchant
			if label == "" {
				label = string(link.Source)
			}
			fmt.Fprintf(out, "   %s: %s\n", label, link.URL)
		}
	}
}

func sourcesLabel(c product.MergedCandidate) string {
	parts := make([]string, 0, len(c.CorroboratingSources)+1)
	for _, source := range c.CorroboratingSources {
		parts = append(parts, string(source))
	}
	if len(parts) == 0 && c.Source != "" {
		parts = append(parts, string(c.Source))
	}
	if c.Origin == product.OriginLibrary {
		parts = append(parts, "library")
	}
	return strings.Join(parts, ", ")
}

func renderCompleteness(out io.Writer, report *completeness.Report) {
	if report == nil {
		return
	}
	if !report.CensusKnown {
		fmt.Fprintf(out, "Completeness: census unknown (%d identified, confidence %s)\n",
			report.IdentifiedCount, formatConfidence(report.CompletenessConfidence))
		return
	}
	fmt.Fprintf(out, "Completeness: %d of %d objects identified, %d missed (confidence %s)\n",
		report.IdentifiedCount, report.CensusCount, report.MissedItemsEstimate,
		formatConfidence(report.CompletenessConfidence))
}

func renderWarnings(out io.Writer, warnings []product.Warning) {
	for _, w := range warnings {
		ref := ""
		if w.ItemRef != "" {
			ref = " [" + w.ItemRef + "]"
		}
		fmt.Fprintf(out, "warning: %s/%s%s: %s\n", w.Scope, w.Code, ref, w.Message)
	}
}
