package fileparser

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var activityMapping = []MappingRule{
	{Source: "id", Target: "StatId"},
	{Source: "name", Target: "Name"},
	{Source: "act_year", Target: "Activities.Activity.ActivityYear"},
	{Source: "act_code", Target: "Activities.ActivityCategory.Code"},
}

func TestParse_MergesRowsSharingScalars(t *testing.T) {
	content := []byte("id,name,act_year,act_code\n1,Acme,2023,A\n1,Acme,2023,B\n")

	records, err := Parse(content, FormatCSV, Options{Mapping: activityMapping, Delimiter: ","})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	require.Equal(t, map[string]string{"StatId": "1", "Name": "Acme"}, rec.Scalars)
	require.Equal(t, []int{2, 3}, rec.Rows)
	require.Len(t, rec.Arrays["Activities"], 2)

	first := rec.Arrays["Activities"][0]
	require.Equal(t, "Activity", first.Item)
	require.Equal(t, "2023", first.Fields["Activity.ActivityYear"])
	require.Equal(t, "A", first.Fields["ActivityCategory.Code"])
	require.Equal(t, "B", rec.Arrays["Activities"][1].Fields["ActivityCategory.Code"])
}

func TestParse_GroupsOnlyConsecutiveRows(t *testing.T) {
	content := []byte("id,name\n1,Acme\n2,Beta\n1,Acme\n")

	records, err := Parse(content, FormatCSV, Options{Mapping: activityMapping[:2]})
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "2", records[1].Scalars["StatId"])
	require.Equal(t, "1", records[2].Scalars["StatId"])
}

func TestParse_ScalarSetComparisonIgnoresColumnOrder(t *testing.T) {
	mapping := []MappingRule{
		{Source: "name", Target: "Name"},
		{Source: "id", Target: "StatId"},
		{Source: "code", Target: "Activities.ActivityCategory.Code"},
		{Source: "pid", Target: "Persons.Person.PersonalId"},
	}
	content := []byte("id,name,code,pid,note\n7,Acme,A,P1,x\n7,Acme,,P2,y\n")

	records, err := Parse(content, FormatCSV, Options{Mapping: mapping})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, records[0].Arrays["Activities"], 1)
	require.Len(t, records[0].Arrays["Persons"], 2)
	require.Equal(t, "P2", records[0].Arrays["Persons"][1].Fields["Person.PersonalId"])
}

func TestParse_DropsEmptyValues(t *testing.T) {
	content := []byte("id,name,act_year,act_code,note\n1,,,,x\n")

	records, err := Parse(content, FormatCSV, Options{Mapping: activityMapping})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, map[string]string{"StatId": "1"}, records[0].Scalars)
	require.Empty(t, records[0].Arrays)
}

func TestParse_RowCountMismatchReportsLine(t *testing.T) {
	content := []byte("id,name\n1,Acme\n2,Beta,extra\n3,Gamma\n")

	_, err := Parse(content, FormatCSV, Options{Mapping: activityMapping[:2]})
	require.Error(t, err)

	pe, ok := AsParseError(err)
	require.True(t, ok)
	require.Equal(t, CodeUploadedFileProblem, pe.Code)
	require.Equal(t, 3, pe.LineNumber)
	require.Equal(t, "2,Beta,extra", pe.Line)
}

func TestParse_MissingMappedColumn(t *testing.T) {
	content := []byte("id\n1\n")

	_, err := Parse(content, FormatCSV, Options{Mapping: activityMapping[:2]})
	pe, ok := AsParseError(err)
	require.True(t, ok)
	require.Equal(t, CodeMappingColumnMissing, pe.Code)
}

func TestReadCSV_StripsBOMAndQuotes(t *testing.T) {
	content := []byte("\ufeffjunk line\r\n\"id\";\"name\"\r\n\"1\";\"Acme\"\r\n")

	table, err := ReadCSV(content, ";", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name"}, table.Columns)
	require.Len(t, table.Rows, 1)
	require.Equal(t, "Acme", table.Rows[0].Values["name"])
	require.Equal(t, 3, table.Rows[0].Line)
}

func TestReadCSV_RejectsLongDelimiter(t *testing.T) {
	_, err := ReadCSV([]byte("a,b\n"), ",,", 0)
	require.Error(t, err)
}

func TestMutateFile(t *testing.T) {
	out := MutateFile([]byte("a,b,\n\n  \nc,d,\r\ne,f"), ",")
	require.Equal(t, "a,b\r\nc,d\r\ne,f", string(out))
}

func TestReadXML(t *testing.T) {
	content := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<units>
  <unit kind="legal"><id>1</id><name> Acme </name></unit>
  <unit><id>2</id><name>Beta</name></unit>
</units>`)

	table, err := ReadXML(content)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"@kind", "id", "name"}, table.Columns)
	require.Len(t, table.Rows, 2)
	require.Equal(t, "legal", table.Rows[0].Values["@kind"])
	require.Equal(t, "Acme", table.Rows[0].Values["name"])
	require.Equal(t, "2", table.Rows[1].Values["id"])
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"id", "name"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"1", "Acme"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"2"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := ReadXLSX(buf.Bytes(), 0)
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name"}, table.Columns)
	require.Len(t, table.Rows, 2)
	require.Equal(t, "Acme", table.Rows[0].Values["name"])
	require.Equal(t, "", table.Rows[1].Values["name"])
}

func TestDetectFormat(t *testing.T) {
	format, err := DetectFormat("upload.CSV", nil)
	require.NoError(t, err)
	require.Equal(t, FormatCSV, format)

	format, err = DetectFormat("upload", []byte(`<?xml version="1.0"?><units></units>`))
	require.NoError(t, err)
	require.Equal(t, FormatXML, format)

	_, err = DetectFormat("upload.bin", []byte("%PDF-1.4\n"))
	pe, ok := AsParseError(err)
	require.True(t, ok)
	require.Equal(t, CodeUnsupportedFileType, pe.Code)
}

func TestParseFile_ReadsFixture(t *testing.T) {
	records, err := ParseFile(filepath.Join("testdata", "units.csv"), Options{Mapping: activityMapping, Delimiter: ";"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Len(t, records[0].Arrays["Activities"], 2)
	require.Len(t, records[1].Arrays["Activities"], 1)
}

func TestParseFile_MissingFile(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "absent.csv"), Options{})
	pe, ok := AsParseError(err)
	require.True(t, ok)
	require.Equal(t, CodeUploadedFileProblem, pe.Code)
}

func TestCheckRecords(t *testing.T) {
	pe, ok := AsParseError(CheckRecords(nil))
	require.True(t, ok)
	require.Equal(t, CodeUploadFileEmpty, pe.Code)

	pe, ok = AsParseError(CheckRecords([]LogicalRecord{
		{Scalars: map[string]string{"StatId": "1"}},
		{Rows: []int{4}},
	}))
	require.True(t, ok)
	require.Equal(t, CodeFileHasEmptyUnit, pe.Code)
	require.Equal(t, 4, pe.LineNumber)

	require.NoError(t, CheckRecords([]LogicalRecord{{Scalars: map[string]string{"StatId": "1"}}}))
}
