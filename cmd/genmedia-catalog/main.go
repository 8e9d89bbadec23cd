// Command genmedia-catalog writes the built-in model catalog as YAML, or checks
// a catalog file before it is uploaded to object storage.
//
// Usage:
//
//	go run ./cmd/genmedia-catalog > config/models.yaml
//	go run ./cmd/genmedia-catalog -check config/models.yaml
package main

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/genmedia-api/internal/catalog"
	"github.com/jmylchreest/genmedia-api/internal/config"
)

func main() {
	output := flag.String("output", "", "Output file path (default: stdout)")
	check := flag.String("check", "", "Validate this catalog file instead of writing the built-in one")
	flag.Parse()

	if *check != "" {
		if err := checkFile(*check); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", *check, err)
			os.Exit(1)
		}
		return
	}

	data, err := yaml.Marshal(catalog.File{Models: catalog.Builtin()})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error marshaling catalog: %v\n", err)
		os.Exit(1)
	}
	if *output == "" {
		fmt.Print(string(data))
		return
	}
	if err := os.WriteFile(*output, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing to file: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "catalog written to %s\n", *output)
}

// checkFile loads path the way the server does and prints the effective cost
// of every model under the current pricing environment.
func checkFile(path string) error {
	pricing, err := config.LoadPricing()
	if err != nil {
		return err
	}
	cat := catalog.New(catalog.Options{DefaultCost: pricing.DefaultJobCost, CostOverrides: pricing.ModelCosts})
	if err := cat.LoadFile(path); err != nil {
		return err
	}

	routes := cat.List()
	for _, r := range routes {
		fmt.Printf("%-28s %-6s %-10s %d credits\n", r.Model, r.Kind, r.Adapter, cat.Cost(r.Model))
	}
	fmt.Fprintf(os.Stderr, "%d models OK\n", len(routes))
	return nil
}
