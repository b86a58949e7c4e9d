// Command schema-generator regenerates the embedded appshelf.yml JSON schema.
//
// Run from the repository root:
//
//	go run ./tools/schema-generator
package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/grovetools/appshelf/config"
)

func main() {
	schemaBytes, err := config.GenerateSchema()
	if err != nil {
		log.Fatalf("Error generating schema: %v", err)
	}

	outputPath := filepath.Join("schema", "appshelf.schema.json")
	if err := os.WriteFile(outputPath, append(schemaBytes, '\n'), 0644); err != nil {
		log.Fatalf("Error writing schema file: %v", err)
	}

	log.Printf("Successfully generated schema at %s", outputPath)
}
