package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/kuhlman-labs/collab-report/internal/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func sampleRows() []audit.Row {
	return []audit.Row{
		{
			Repository:          "api",
			Visibility:          "INTERNAL",
			Login:               "bob",
			Name:                "Bob, Jr.",
			SSOEmail:            "bob@corp.com",
			VerifiedEmail:       "bob@corp.com, robert@corp.com",
			PublicEmail:         "",
			Permission:          "WRITE",
			OrganizationRole:    "MEMBER",
			ActiveContributions: ptr(false),
			TotalContributions:  ptr(0),
			CreatedAt:           "2018-06-01",
			UpdatedAt:           "2026-01-09",
			Organization:        "acme",
		},
		{
			Repository:          "web",
			Visibility:          "PRIVATE",
			Login:               "alice",
			SSOEmail:            "alice@corp.com",
			Permission:          "ADMIN",
			OrganizationRole:    audit.OutsideCollaborator,
			ActiveContributions: ptr(true),
			TotalContributions:  ptr(12),
			CreatedAt:           "2020-02-02",
			UpdatedAt:           "2025-12-24",
			Organization:        "acme",
		},
	}
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestColumns(t *testing.T) {
	assert.Equal(t, []string{
		"Repository", "Repo Visibility", "Username", "Full name", "SSO email",
		"Verified email", "Public email", "Repo permission", "Organization role",
		"Active contributions", "Total contributions", "User created", "User updated",
		"Organization",
	}, Columns(audit.VariantExtended))

	assert.Equal(t, []string{
		"Repository", "Repo Visibility", "Username", "Full name", "SSO email",
		"Verified email", "Public email", "Repo permission", "Organization",
	}, Columns(audit.VariantBasic))
}

func TestEncodeCSV_Extended(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeCSV(&buf, sampleRows(), audit.VariantExtended))

	records := readCSV(t, buf.Bytes())
	require.Len(t, records, 3)
	assert.Equal(t, Columns(audit.VariantExtended), records[0])
	assert.Equal(t, []string{
		"api", "INTERNAL", "bob", "Bob, Jr.", "bob@corp.com", "bob@corp.com, robert@corp.com", "",
		"WRITE", "MEMBER", "FALSE", "0", "2018-06-01", "2026-01-09", "acme",
	}, records[1])
	assert.Equal(t, []string{
		"web", "PRIVATE", "alice", "", "alice@corp.com", "", "",
		"ADMIN", "OUTSIDE COLLABORATOR", "TRUE", "12", "2020-02-02", "2025-12-24", "acme",
	}, records[2])
}

func TestEncodeCSV_Basic(t *testing.T) {
	rows := []audit.Row{{Repository: "web", Visibility: "PUBLIC", Login: "alice", Permission: "READ", Organization: "acme"}}

	var buf bytes.Buffer
	require.NoError(t, EncodeCSV(&buf, rows, audit.VariantBasic))

	records := readCSV(t, buf.Bytes())
	require.Len(t, records, 2)
	assert.Equal(t, []string{"web", "PUBLIC", "alice", "", "", "", "", "READ", "acme"}, records[1])
}

func TestEncodeCSV_UnmeasuredContributionsRenderEmpty(t *testing.T) {
	rows := []audit.Row{{Repository: "web", Login: "alice"}}

	var buf bytes.Buffer
	require.NoError(t, EncodeCSV(&buf, rows, audit.VariantExtended))

	records := readCSV(t, buf.Bytes())
	assert.Equal(t, "", records[1][9])
	assert.Equal(t, "", records[1][10])
}

func TestEncodeCSV_HeaderOnlyWhenEmpty(t *testing.T) {
	for _, variant := range []audit.Variant{audit.VariantBasic, audit.VariantExtended} {
		var buf bytes.Buffer
		require.NoError(t, EncodeCSV(&buf, nil, variant))

		records := readCSV(t, buf.Bytes())
		require.Len(t, records, 1, "variant %s", variant)
		assert.Equal(t, Columns(variant), records[0])
	}
}

func TestEncodeJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeJSON(&buf, sampleRows()[1:]))

	assert.Contains(t, buf.String(), "\n  {\n    \"orgRepo\": \"web\",")

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "alice@corp.com", decoded[0]["ssoEmailValue"])
	assert.Equal(t, "OUTSIDE COLLABORATOR", decoded[0]["memberValue"])
	assert.Equal(t, true, decoded[0]["activeContrib"])
	assert.Equal(t, float64(12), decoded[0]["sumContrib"])
}

func TestEncodeJSON_BasicOmitsExtendedFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeJSON(&buf, []audit.Row{{Repository: "web", Login: "alice"}}))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	for _, key := range []string{"memberValue", "activeContrib", "sumContrib", "createdAt", "updatedAt"} {
		assert.NotContains(t, decoded[0], key)
	}
}

func TestEncodeJSON_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestPath(t *testing.T) {
	assert.Equal(t, "reports/acme-ALL-ADMIN-report.csv", Path("acme", "ALL", "ADMIN", FormatCSV))
	assert.Equal(t, "reports/acme-OUTSIDE-READ-report.json", Path("acme", "OUTSIDE", "READ", FormatJSON))
}

func TestRender(t *testing.T) {
	result := &audit.Result{Organization: "acme", Variant: audit.VariantExtended, Rows: sampleRows()}

	files, err := Render(result, RenderOptions{Affiliation: "ALL", Permission: "ADMIN"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "reports/acme-ALL-ADMIN-report.csv", files[0].Path)

	files, err = Render(result, RenderOptions{Affiliation: "ALL", Permission: "ADMIN", JSON: true})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, FormatJSON, files[1].Format)
	assert.Equal(t, "reports/acme-ALL-ADMIN-report.json", files[1].Path)
}

func TestRender_Deterministic(t *testing.T) {
	result := &audit.Result{Organization: "acme", Variant: audit.VariantExtended, Rows: sampleRows()}
	opts := RenderOptions{Affiliation: "ALL", Permission: "ADMIN", JSON: true}

	first, err := Render(result, opts)
	require.NoError(t, err)
	second, err := Render(result, opts)
	require.NoError(t, err)

	for i := range first {
		assert.Equal(t, first[i].Content, second[i].Content)
	}
}
