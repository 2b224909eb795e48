// =============================================================================
// Ticket Ledger Export - Main Entry Point
// =============================================================================
//
// This is the main entry point of the itk-export CLI. It delegates command
// execution to the cmd package.
//
// USAGE:
//   itk-export export   - Export a time window of ticket sales
//   itk-export version  - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Export logic (sources, grouping, validation, writers, delivery)
//   - pkg/       : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/pretix-unofficial/pretix-itk-export/cmd"
)

func main() {
	cmd.Execute()
}
