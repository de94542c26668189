// Command spid-metadata generates the signed SP metadata document for a
// SPID service provider configuration.
// Usage: go run ./cmd/spid-metadata -config sp.json [-decryption-cert cert.pem]
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	spid "github.com/BeAdopt/spid-passport"
)

func main() {
	configPath := flag.String("config", "sp.json", "Path to the provider configuration file")
	decryptionCertPath := flag.String("decryption-cert", "", "Path to the PEM certificate matching the configured decryption key")
	output := flag.String("output", "", "Write the metadata to this file instead of stdout")
	flag.Parse()

	cfg, err := spid.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var decryptionCert string
	if *decryptionCertPath != "" {
		data, err := os.ReadFile(*decryptionCertPath)
		if err != nil {
			log.Fatalf("Failed to read decryption certificate: %v", err)
		}
		decryptionCert = string(data)
	}

	engine := spid.NewProtocolEngine(spid.NewInMemoryRequestStore())
	generator := spid.NewMetadataGenerator(cfg, engine)

	metadata, err := generator.Generate(decryptionCert)
	if err != nil {
		log.Fatalf("Failed to generate metadata: %v", err)
	}

	if *output != "" {
		if err := os.WriteFile(*output, []byte(metadata), 0o644); err != nil {
			log.Fatalf("Failed to write metadata: %v", err)
		}
		log.Printf("Wrote signed metadata for %s to %s", cfg.Issuer, *output)
		return
	}

	fmt.Println(metadata)
}
