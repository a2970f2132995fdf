package datasets

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const annotated = "\ufeffSN,Text ID,Text,SEN,HAO,POL\n" +
	"1,t1,\"राम्रो छ, धेरै राम्रो\",2,0,0\n" +
	"2,t2,\"पहिलो लाइन\nदोस्रो लाइन\",1,1,1\n" +
	"3,t3,ठीक छ,0,0,1\n"

func check(t *testing.T, err error) {
	if err != nil {
		t.Fatalf("%s", err.Error())
	}
}

func TestReadTable(t *testing.T) {
	table, err := ReadTable(strings.NewReader(annotated))
	check(t, err)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []string{"SN", "Text ID", "Text", "SEN", "HAO", "POL"}, table.Header())

	text, err := table.Values("Text")
	check(t, err)
	assert.Equal(t, []string{"राम्रो छ, धेरै राम्रो", "पहिलो लाइन\nदोस्रो लाइन", "ठीक छ"}, text)

	cell, err := table.Cell(1, "SEN")
	check(t, err)
	assert.Equal(t, "1", cell)
}

func TestReadTableErrors(t *testing.T) {
	_, err := ReadTable(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ReadTable(strings.NewReader("a,b\n1,2\n3\n"))
	assert.Error(t, err)

	_, err = ReadTable(strings.NewReader("a,a\n1,2\n"))
	assert.ErrorContains(t, err, "duplicate column")
}

func TestMissingColumns(t *testing.T) {
	table, err := ReadTable(strings.NewReader(annotated))
	check(t, err)

	_, err = table.Columns("Text", "PGS", "FT")
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "PGS, FT")

	task := TaskDefinition{Name: "multi_topics", Feature: "Text", Label: MultiLabel(TopicColumns...)}
	err = task.Validate(table)
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "multi_topics")

	for _, task := range TikNepTasks()[:3] {
		assert.NoError(t, task.Validate(table))
	}
}

func TestSelectKeepsOrder(t *testing.T) {
	table, err := ReadTable(strings.NewReader(annotated))
	check(t, err)

	sub, err := table.Select([]int{2, 0}, []string{"POL", "SN"})
	check(t, err)
	assert.Equal(t, []string{"POL", "SN"}, sub.Header())
	ids, err := sub.Values("SN")
	check(t, err)
	assert.Equal(t, []string{"3", "1"}, ids)
	pol, err := sub.Values("POL")
	check(t, err)
	assert.Equal(t, []string{"1", "0"}, pol)

	_, err = table.Select([]int{3}, []string{"SN"})
	assert.Error(t, err)
}

func TestWriteAndLoad(t *testing.T) {
	table, err := ReadTable(strings.NewReader(annotated))
	check(t, err)
	dir := t.TempDir()

	for _, format := range []string{"csv", "xlsx"} {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(dir, "table."+format)
			check(t, WriteTable(context.Background(), path, format, table))

			loaded, err := LoadTable(context.Background(), path)
			check(t, err)
			assert.Equal(t, table.Header(), loaded.Header())
			for _, column := range table.Header() {
				want, _ := table.Values(column)
				got, err := loaded.Values(column)
				check(t, err)
				assert.Equal(t, want, got, column)
			}
		})
	}

	assert.Error(t, WriteTable(context.Background(), filepath.Join(dir, "table.parquet"), "parquet", table))
	_, err = LoadTable(context.Background(), filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestEncodeCSVHasNoIndexColumn(t *testing.T) {
	table, err := NewTable([]string{"Text"}, [][]string{{"a, b"}, {"c"}})
	check(t, err)
	var buf bytes.Buffer
	check(t, EncodeCSV(&buf, table))
	assert.Equal(t, "Text\n\"a, b\"\nc\n", buf.String())
}

func TestLabelSpecJSON(t *testing.T) {
	var tasks []TaskDefinition
	err := jsoniter.Unmarshal([]byte(`[
		{"name": "sentiment", "feature": "Text", "label": "SEN"},
		{"name": "political", "feature": "Text", "label": {"single": "POL"}},
		{"name": "topics", "feature": "Text", "label": ["PGS", "FT"]},
		{"name": "more_topics", "feature": "Text", "label": {"multi": ["EYE"]}}
	]`), &tasks)
	check(t, err)
	require.Len(t, tasks, 4)
	assert.Equal(t, SingleLabel("SEN"), tasks[0].Label)
	assert.Equal(t, SingleLabel("POL"), tasks[1].Label)
	assert.Equal(t, MultiLabel("PGS", "FT"), tasks[2].Label)
	assert.False(t, tasks[3].Label.IsSingle())
	assert.Equal(t, []string{"EYE"}, tasks[3].Label.Columns())

	out, err := jsoniter.Marshal(tasks[2].Label)
	check(t, err)
	assert.JSONEq(t, `{"multi": ["PGS", "FT"]}`, string(out))

	var bad LabelSpec
	assert.Error(t, jsoniter.Unmarshal([]byte(`{"single": "SEN", "multi": ["PGS"]}`), &bad))
}

func TestTaskDefinitionCheck(t *testing.T) {
	for _, task := range []TaskDefinition{
		{Feature: "Text", Label: SingleLabel("SEN")},
		{Name: "../up", Feature: "Text", Label: SingleLabel("SEN")},
		{Name: "x", Label: SingleLabel("SEN")},
		{Name: "x", Feature: "Text"},
		{Name: "x", Feature: "Text", Label: MultiLabel("PGS", "PGS")},
	} {
		assert.Error(t, task.Check(), task.Name)
	}
	assert.Equal(t, "[PGS, FT]", MultiLabel("PGS", "FT").String())
	assert.Equal(t, "Neutral (0)", ClassName("SEN", "0"))
	assert.Equal(t, "7", ClassName("PGS", "7"))
}

func TestRecords(t *testing.T) {
	records := []Record{
		{SN: 1, TextID: "t1", Text: "राम्रो छ, धेरै राम्रो", SEN: 2, PGS: 1, DO: 1},
		{SN: 2, TextID: "t2", Text: "ठीक छ", SEN: 0, HAO: 1, POL: 1},
	}
	table, err := RecordsTable(records)
	check(t, err)
	assert.Equal(t, append([]string{"SN", "Text ID", "Text", "SEN", "HAO", "POL"}, TopicColumns...), table.Header())
	for _, task := range TikNepTasks() {
		assert.NoError(t, task.Validate(table))
	}

	decoded, err := Records(table)
	check(t, err)
	assert.Equal(t, records, decoded)
	assert.Equal(t, []int{1, 0, 0, 0, 0, 0, 0, 0, 1}, decoded[0].Topics())

	bad, err := NewTable([]string{"SN", "SEN"}, [][]string{{"1", "neutral"}})
	check(t, err)
	_, err = Records(bad)
	assert.Error(t, err)
}

func TestCheckAnnotation(t *testing.T) {
	records := []Record{
		{SN: 1, TextID: "t1", Text: "राम्रो", SEN: 2, PGS: 1},
		{SN: 2, TextID: "t2", Text: "ठीक छ", SEN: 0, HAO: 1, POL: 1},
	}
	table, err := RecordsTable(records)
	check(t, err)
	assert.True(t, HasAnnotation(table))
	check(t, CheckAnnotation(table))

	header := table.Header()
	rows := [][]string{
		{"1", "t1", "राम्रो", "2", "0", "0", "2", "0", "0", "0", "0", "0", "0", "0", "0"},
	}
	flags, err := NewTable(header, rows)
	check(t, err)
	assert.ErrorContains(t, CheckAnnotation(flags), "topic PGS must be 0 or 1")

	rows[0][3], rows[0][6] = "positive", "1"
	codes, err := NewTable(header, rows)
	check(t, err)
	assert.ErrorContains(t, CheckAnnotation(codes), "decoding records")

	partial, err := ReadTable(strings.NewReader(annotated))
	check(t, err)
	assert.False(t, HasAnnotation(partial))
}
