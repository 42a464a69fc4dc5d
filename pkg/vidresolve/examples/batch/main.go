// Example: Resolve several embed pages concurrently
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/alvarorichard/vidresolve/pkg/vidresolve"
	"github.com/alvarorichard/vidresolve/pkg/vidresolve/types"
)

func main() {
	if len(os.Args) < 3 {
		log.Fatal("usage: batch <catalog.yaml> <embed-url>...")
	}

	client := vidresolve.NewClient(
		vidresolve.WithHTTPClient(nil),
		vidresolve.WithMaxWorkers(4),
	)
	if err := client.LoadCatalogFile(os.Args[1]); err != nil {
		log.Fatal(err)
	}

	jobs := make([]types.Job, 0, len(os.Args)-2)
	for _, pageURL := range os.Args[2:] {
		jobs = append(jobs, types.Job{PageURL: pageURL})
	}

	// Variants come back in job order; failed pages contribute nothing
	variants := client.ResolveAll(context.Background(), jobs)
	fmt.Printf("Resolved %d variants from %d pages:\n\n", len(variants), len(jobs))
	for _, v := range variants {
		fmt.Printf("%-8s %s\n", v.Label, v.URL)
	}
}
