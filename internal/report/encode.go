// Package report renders collaborator report rows as CSV and JSON and
// persists them to a repository or a local directory.
package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/kuhlman-labs/collab-report/internal/audit"
)

// Format is a report file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// column is one CSV column: its header and how a row renders into it
type column struct {
	header       string
	value        func(audit.Row) string
	extendedOnly bool
}

var columns = []column{
	{header: "Repository", value: func(r audit.Row) string { return r.Repository }},
	{header: "Repo Visibility", value: func(r audit.Row) string { return r.Visibility }},
	{header: "Username", value: func(r audit.Row) string { return r.Login }},
	{header: "Full name", value: func(r audit.Row) string { return r.Name }},
	{header: "SSO email", value: func(r audit.Row) string { return r.SSOEmail }},
	{header: "Verified email", value: func(r audit.Row) string { return r.VerifiedEmail }},
	{header: "Public email", value: func(r audit.Row) string { return r.PublicEmail }},
	{header: "Repo permission", value: func(r audit.Row) string { return r.Permission }},
	{header: "Organization role", value: func(r audit.Row) string { return r.OrganizationRole }, extendedOnly: true},
	{header: "Active contributions", value: func(r audit.Row) string { return formatBool(r.ActiveContributions) }, extendedOnly: true},
	{header: "Total contributions", value: func(r audit.Row) string { return formatInt(r.TotalContributions) }, extendedOnly: true},
	{header: "User created", value: func(r audit.Row) string { return r.CreatedAt }, extendedOnly: true},
	{header: "User updated", value: func(r audit.Row) string { return r.UpdatedAt }, extendedOnly: true},
	{header: "Organization", value: func(r audit.Row) string { return r.Organization }},
}

// Columns returns the CSV columns emitted for a variant
func Columns(variant audit.Variant) []string {
	var headers []string
	for _, col := range variantColumns(variant) {
		headers = append(headers, col.header)
	}
	return headers
}

func variantColumns(variant audit.Variant) []column {
	cols := make([]column, 0, len(columns))
	for _, col := range columns {
		if col.extendedOnly && !variant.Extended() {
			continue
		}
		cols = append(cols, col)
	}
	return cols
}

// EncodeCSV writes a header row followed by one record per row
func EncodeCSV(w io.Writer, rows []audit.Row, variant audit.Variant) error {
	cols := variantColumns(variant)
	cw := csv.NewWriter(w)

	record := make([]string, len(cols))
	for i, col := range cols {
		record[i] = col.header
	}
	if err := cw.Write(record); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range rows {
		for i, col := range cols {
			record[i] = col.value(row)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row for %s/%s: %w", row.Repository, row.Login, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// EncodeJSON writes rows as an indented JSON array. An empty report is "[]".
func EncodeJSON(w io.Writer, rows []audit.Row) error {
	if rows == nil {
		rows = []audit.Row{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("failed to encode JSON report: %w", err)
	}
	return nil
}

// Path is the repository path of a report file
func Path(org, affiliation, permission string, format Format) string {
	return fmt.Sprintf("reports/%s-%s-%s-report.%s", org, affiliation, permission, format)
}

// File is a rendered report file
type File struct {
	Path    string
	Format  Format
	Content []byte
}

// RenderOptions selects which files Render produces
type RenderOptions struct {
	Affiliation string
	Permission  string
	JSON        bool
}

// Render produces the CSV report, plus the JSON report when requested
func Render(result *audit.Result, opts RenderOptions) ([]File, error) {
	var buf bytes.Buffer
	if err := EncodeCSV(&buf, result.Rows, result.Variant); err != nil {
		return nil, err
	}
	files := []File{{
		Path:    Path(result.Organization, opts.Affiliation, opts.Permission, FormatCSV),
		Format:  FormatCSV,
		Content: bytes.Clone(buf.Bytes()),
	}}

	if opts.JSON {
		buf.Reset()
		if err := EncodeJSON(&buf, result.Rows); err != nil {
			return nil, err
		}
		files = append(files, File{
			Path:    Path(result.Organization, opts.Affiliation, opts.Permission, FormatJSON),
			Format:  FormatJSON,
			Content: bytes.Clone(buf.Bytes()),
		})
	}
	return files, nil
}

func formatBool(b *bool) string {
	switch {
	case b == nil:
		return ""
	case *b:
		return "TRUE"
	default:
		return "FALSE"
	}
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
