// Example: Resolve one embed page into playable variants
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/alvarorichard/vidresolve/pkg/vidresolve"
)

func main() {
	if len(os.Args) < 3 {
		log.Fatal("usage: resolve <catalog.yaml> <embed-url>")
	}

	// Fetch pages and manifests with the pooled HTTP client
	client := vidresolve.NewClient(
		vidresolve.WithHTTPClient(nil),
		vidresolve.WithTimeout(15*time.Second),
	)
	if err := client.LoadCatalogFile(os.Args[1]); err != nil {
		log.Fatal(err)
	}

	pageURL := os.Args[2]
	name, ok := client.LocatorFor(pageURL)
	if !ok {
		log.Fatalf("No locator handles %s", pageURL)
	}
	fmt.Printf("Resolving %s with %s...\n", pageURL, name)

	variants, err := client.Resolve(context.Background(), pageURL, "")
	if err != nil {
		log.Fatal(err)
	}
	if len(variants) == 0 {
		log.Fatal("No variants found")
	}

	fmt.Printf("\nFound %d variants:\n\n", len(variants))
	for i, v := range variants {
		fmt.Printf("%d. %-8s %s\n", i+1, v.Label, v.URL)
		for _, h := range v.Headers {
			fmt.Printf("   %s: %s\n", h.Key, h.Value)
		}
	}

	best := vidresolve.Best(variants)
	fmt.Printf("\nBest: %s %s\n", best.Label, best.URL)
	for _, s := range best.Subtitles {
		fmt.Printf("   Subtitle: %s %s\n", s.Name, s.URL)
	}
}
