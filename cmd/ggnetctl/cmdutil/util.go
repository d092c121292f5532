// Package cmdutil provides shared utilities for ggnetctl commands.
package cmdutil

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/ggnet/ggnetd/pkg/apiclient"
)

// Flags stores global flag values set by the root command's PersistentPreRun.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values shared across subcommands.
type GlobalFlags struct {
	ServerURL string
	Token     string
	Output    string
}

// GetClient returns an API client configured from the --server/--token flags.
func GetClient() (*apiclient.Client, error) {
	if Flags.ServerURL == "" {
		return nil, fmt.Errorf("no server configured, pass --server")
	}
	return apiclient.New(Flags.ServerURL).WithToken(Flags.Token), nil
}

// IsJSON reports whether the selected output format is JSON.
func IsJSON() bool {
	return Flags.Output == "json"
}

// PrintJSON writes data as indented JSON to w.
func PrintJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// PrintTable writes headers and rows as a borderless table to w.
func PrintTable(w io.Writer, headers []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
}
