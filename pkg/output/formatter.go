package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/ritzau/flow-editor/pkg/cycles"
	"github.com/ritzau/flow-editor/pkg/graph"
)

// PrintGraphReport prints a colored summary of a stored graph document
func PrintGraphReport(w io.Writer, source string, stats graph.Stats, nodeCycles []cycles.NodeCycle) {
	// Color definitions
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	// Header
	bold.Fprintln(w, "Flow Editor - Graph Report")
	bold.Fprintln(w, "==========================")
	fmt.Fprintf(w, "Document: %s\n", source)
	fmt.Fprintf(w, "Nodes: %d\n", stats.Nodes)
	fmt.Fprintf(w, "Edges: %d\n", stats.Edges)
	if len(stats.Roots) > 0 {
		cyan.Fprintf(w, "Roots: %s\n", strings.Join(stats.Roots, ", "))
	}
	fmt.Fprintln(w)

	if len(stats.DanglingEdges) > 0 {
		red.Fprintln(w, "DANGLING EDGES:")
		for _, e := range stats.DanglingEdges {
			yellow.Fprintf(w, "  %s\n", e.ID)
			fmt.Fprintf(w, "    %s -> %s\n", e.Source, e.Target)
		}
		fmt.Fprintln(w, "    These are dropped when the editor loads the document")
		fmt.Fprintln(w)
	}

	if len(nodeCycles) > 0 {
		yellow.Fprintln(w, "CYCLES:")
		for _, c := range nodeCycles {
			if len(c.Nodes) == 1 {
				fmt.Fprintf(w, "  %s -> %s\n", c.Nodes[0], c.Nodes[0])
				continue
			}
			fmt.Fprintf(w, "  %s\n", strings.Join(c.Nodes, " <-> "))
		}
		fmt.Fprintln(w)
	}

	// Summary
	switch {
	case len(stats.DanglingEdges) > 0:
		red.Fprintf(w, "Summary: %d dangling edge(s)\n", len(stats.DanglingEdges))
	case !stats.Acyclic:
		yellow.Fprintf(w, "Summary: %d cycle(s)\n", len(nodeCycles))
	default:
		green.Fprintf(w, "Summary: acyclic, order %s\n", strings.Join(stats.Order, " -> "))
		green.Fprintln(w, "✓ Graph is consistent")
	}
}
