// pipelinectl validates the built-in pipeline definitions and prints their
// execution order. It is a deployment preflight: a broken dependency graph
// fails here instead of in a running worker fleet.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/maraichr/docstream/internal/model"
	"github.com/maraichr/docstream/internal/pipeline"
)

func main() {
	systemType := flag.String("system", "", "pipeline to inspect (vector or graph, default both)")
	flag.Parse()

	registry := pipeline.DefaultRegistry()

	var types []model.SystemType
	if *systemType != "" {
		types = []model.SystemType{model.SystemType(*systemType)}
	} else {
		types = registry.SystemTypes()
	}

	failed := false
	for _, st := range types {
		p, ok := registry.Pipeline(st)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown pipeline %q\n", st)
			failed = true
			continue
		}

		fmt.Printf("pipeline %s (%s)\n", p.Name, st)
		if diags := pipeline.Validate(p); len(diags) > 0 {
			for _, d := range diags {
				fmt.Fprintf(os.Stderr, "  invalid: %s\n", d)
			}
			failed = true
			continue
		}

		order, err := p.ExecutionOrder()
		if err != nil {
			fmt.Fprintf(os.Stderr, "  invalid: %v\n", err)
			failed = true
			continue
		}
		for i, group := range order {
			names := make([]string, len(group))
			for j, role := range group {
				names[j] = string(role)
			}
			fmt.Printf("  %d. %s\n", i+1, strings.Join(names, ", "))
		}
	}

	if failed {
		os.Exit(1)
	}
}
