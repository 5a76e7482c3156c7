// cmd/tools/csv-check/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"nylta-workers/internal/models"
	"nylta-workers/internal/wizard"
)

type checkResult struct {
	File    string              `json:"file"`
	Clients []models.Client     `json:"clients"`
	Reports []wizard.StepReport `json:"reports"`
	Ready   bool                `json:"readyForAttestation"`
}

func main() {
	file := flag.String("file", "", "Client CSV to check (reads stdin when empty)")
	template := flag.String("template", "", "Write the blank CSV template to this path and exit (- for stdout)")
	quiet := flag.Bool("quiet", false, "Print only the step reports")
	flag.Parse()

	if *template != "" {
		if err := writeTemplate(*template); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing template: %v\n", err)
			os.Exit(1)
		}
		return
	}

	text, err := readInput(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}

	clients, err := wizard.ParseUpload(text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CSV rejected: %v\n", err)
		os.Exit(1)
	}

	result := checkResult{File: *file, Clients: clients, Ready: true}
	for step := wizard.StepCompanyDetails; step <= wizard.StepExemptions; step++ {
		report := wizard.Validate(step, clients, nil)
		result.Reports = append(result.Reports, report)
		if !report.Complete {
			result.Ready = false
		}
	}
	if *quiet {
		result.Clients = nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding result: %v\n", err)
		os.Exit(1)
	}
	if !result.Ready {
		os.Exit(2)
	}
}

func readInput(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

func writeTemplate(path string) error {
	if path == "-" {
		return wizard.WriteTemplate(os.Stdout, nil)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := wizard.WriteTemplate(f, nil); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
