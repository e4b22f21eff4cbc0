package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/sozercan/recyclens/apimodels"
)

func renderResult(w io.Writer, r *apimodels.AnalyzeResponse) {
	verdict := "not recyclable"
	if r.IsRecyclable {
		verdict = "recyclable"
	}
	fmt.Fprintf(w, "%s  (%s, %.0f%% confident)\n", strings.ToUpper(string(r.Bin)), verdict, r.Confidence*100)
	if r.Category != "" {
		fmt.Fprintf(w, "Category: %s\n", r.Category)
	}
	if r.MaterialDescription != "" {
		fmt.Fprintf(w, "Material: %s\n", r.MaterialDescription)
	}
	if r.LocationUsed != "" {
		fmt.Fprintf(w, "Location: %s\n", r.LocationUsed)
	}

	if len(r.Instructions) > 0 {
		fmt.Fprintln(w, "\nInstructions:")
		for i, step := range r.Instructions {
			fmt.Fprintf(w, "  %d. %s\n", i+1, step)
		}
	}

	if r.Reasoning != "" {
		fmt.Fprintln(w, "\nWhy:")
		fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(r.Reasoning, "\n", "\n  "))
	}

	if len(r.Facilities) > 0 {
		fmt.Fprintln(w, "\nFacilities:")
		for _, f := range r.Facilities {
			renderFacility(w, f)
		}
	}

	renderSources(w, r.RagSources, r.WebSearchSources)
}

func renderFacility(w io.Writer, f apimodels.Facility) {
	if f.Type != "" {
		fmt.Fprintf(w, "  - %s (%s)\n", f.Name, f.Type)
	} else {
		fmt.Fprintf(w, "  - %s\n", f.Name)
	}
	for _, line := range []string{f.Address, f.URL, f.Notes} {
		if line != "" {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

// renderSources prints nothing when there are no sources. The header counts
// each non-empty group, e.g. "Sources (2 + 1)".
func renderSources(w io.Writer, ragSources, webSources []string) {
	var counts []string
	if len(ragSources) > 0 {
		counts = append(counts, fmt.Sprint(len(ragSources)))
	}
	if len(webSources) > 0 {
		counts = append(counts, fmt.Sprint(len(webSources)))
	}
	if len(counts) == 0 {
		return
	}

	fmt.Fprintf(w, "\nSources (%s)\n", strings.Join(counts, " + "))
	if len(ragSources) > 0 {
		fmt.Fprintln(w, "  Local regulations:")
		for _, s := range ragSources {
			fmt.Fprintf(w, "    %s\n", s)
		}
	}
	if len(webSources) > 0 {
		fmt.Fprintln(w, "  Web:")
		for _, s := range webSources {
			fmt.Fprintf(w, "    %s\n", s)
		}
	}
}
