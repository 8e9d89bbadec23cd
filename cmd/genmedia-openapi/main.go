// Package main provides a CLI tool to generate the OpenAPI specification for the genmedia API.
// It registers the shared route definitions against stub handlers, so no database,
// provider or object storage is needed.
//
// Usage:
//
//	go run ./cmd/genmedia-openapi > openapi.json
//	go run ./cmd/genmedia-openapi -yaml > openapi.yaml
//	go run ./cmd/genmedia-openapi -output openapi.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/genmedia-api/internal/http/routes"
	"github.com/jmylchreest/genmedia-api/internal/version"
)

func main() {
	outputFile := flag.String("output", "", "Output file path (default: stdout)")
	outputYAML := flag.Bool("yaml", false, "Output as YAML instead of JSON")
	baseURL := flag.String("base-url", "http://localhost:8080", "Base URL for the API server")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get().Short())
		return
	}

	api := humachi.New(chi.NewRouter(), routes.NewHumaConfig(*baseURL))
	routes.Register(api, routes.StubHandlers())
	spec := api.OpenAPI()

	var data []byte
	var err error
	if *outputYAML {
		data, err = yaml.Marshal(spec)
	} else {
		data, err = json.MarshalIndent(spec, "", "  ")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error marshaling OpenAPI spec: %v\n", err)
		os.Exit(1)
	}

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "error writing to file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "OpenAPI spec written to %s\n", *outputFile)
		return
	}
	fmt.Print(string(data))
}
