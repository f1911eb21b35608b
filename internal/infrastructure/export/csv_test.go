package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/trialscope/internal/domain/result"
)

func trialTable(rows ...result.Row) *result.Table {
	t := result.NewTable("drugs", []string{"nct_id", "moa"}, []string{"nct_id"})
	for _, r := range rows {
		t.Append(r)
	}
	return t
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestCSVSink_WritesNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "drugs.csv")
	s := NewCSVSink(path, nil)

	err := s.Write(context.Background(), trialTable(
		result.Row{"nct_id": "NCT1", "moa": "Inhibitor, kinase"},
		result.Row{"nct_id": "NCT2"},
	))
	require.NoError(t, err)

	assert.Equal(t, "nct_id,moa\nNCT1,\"Inhibitor, kinase\"\nNCT2,\n", readFile(t, path))
	assert.Equal(t, path, s.Path())
	assert.Equal(t, "csv", s.Name())
}

func TestCSVSink_UpsertsByKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drugs.csv")
	s := NewCSVSink(path, nil)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, trialTable(
		result.Row{"nct_id": "NCT1", "moa": "old"},
		result.Row{"nct_id": "NCT2", "moa": "keep"},
	)))
	require.NoError(t, s.Write(ctx, trialTable(
		result.Row{"nct_id": "NCT3", "moa": "new"},
		result.Row{"nct_id": "NCT1", "moa": "replaced"},
	)))

	assert.Equal(t, "nct_id,moa\nNCT1,replaced\nNCT2,keep\nNCT3,new\n", readFile(t, path))
}

func TestCSVSink_RepeatedWriteWithSharedKeyIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target.csv")
	s := NewCSVSink(path, nil)
	ctx := context.Background()

	tbl := trialTable(
		result.Row{"nct_id": "NA", "moa": "Not Approved"},
		result.Row{"nct_id": "NCT1", "moa": "x"},
		result.Row{"nct_id": "NA", "moa": "Approved"},
	)
	require.NoError(t, s.Write(ctx, tbl))
	first := readFile(t, path)
	require.NoError(t, s.Write(ctx, tbl))

	assert.Equal(t, first, readFile(t, path))
	assert.Equal(t, "nct_id,moa\nNA,Not Approved\nNCT1,x\nNA,Approved\n", first)
}

func TestCSVSink_SharedKeyGroupResized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target.csv")
	s := NewCSVSink(path, nil)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, trialTable(
		result.Row{"nct_id": "NA", "moa": "a"},
		result.Row{"nct_id": "NA", "moa": "b"},
		result.Row{"nct_id": "NCT1", "moa": "keep"},
	)))

	require.NoError(t, s.Write(ctx, trialTable(result.Row{"nct_id": "NA", "moa": "c"})))
	assert.Equal(t, "nct_id,moa\nNA,c\nNCT1,keep\n", readFile(t, path))

	require.NoError(t, s.Write(ctx, trialTable(
		result.Row{"nct_id": "NA", "moa": "d"},
		result.Row{"nct_id": "NA", "moa": "e"},
	)))
	assert.Equal(t, "nct_id,moa\nNA,d\nNCT1,keep\nNA,e\n", readFile(t, path))
}

func TestCSVSink_AppendsNewColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drugs.csv")
	require.NoError(t, os.WriteFile(path, []byte("moa,nct_id\nx,NCT9\n"), 0o644))

	tbl := result.NewTable("drugs", []string{"nct_id", "moa", "target"}, []string{"nct_id"})
	tbl.Append(result.Row{"nct_id": "NCT1", "moa": "m", "target": "EGFR"})
	require.NoError(t, NewCSVSink(path, nil).Write(context.Background(), tbl))

	assert.Equal(t, "moa,nct_id,target\nx,NCT9,\nm,NCT1,EGFR\n", readFile(t, path))
}

func TestCSVSink_NoKeyColumnsOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.csv")
	require.NoError(t, os.WriteFile(path, []byte("a\nold\n"), 0o644))

	tbl := result.NewTable("plain", []string{"a"}, nil)
	tbl.Append(result.Row{"a": "new"})
	require.NoError(t, NewCSVSink(path, nil).Write(context.Background(), tbl))

	assert.Equal(t, "a\nnew\n", readFile(t, path))
}

func TestCSVSink_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := filepath.Join(t.TempDir(), "drugs.csv")

	err := NewCSVSink(path, nil).Write(ctx, trialTable())
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestReadCSV(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		tbl, err := ReadCSV(filepath.Join(t.TempDir(), "none.csv"))
		require.NoError(t, err)
		assert.Nil(t, tbl)
	})

	t.Run("short records", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "x.csv")
		require.NoError(t, os.WriteFile(path, []byte("a,b\n1\n"), 0o644))
		tbl, err := ReadCSV(path)
		require.NoError(t, err)
		require.Equal(t, 1, tbl.Len())
		assert.Equal(t, result.Row{"a": "1"}, tbl.Rows[0])
	})
}

func TestJSONSink_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drugs.json")
	s := NewJSONSink(path, nil)

	require.NoError(t, s.Write(context.Background(), trialTable(result.Row{"nct_id": "NCT1"})))

	var rows []map[string]string
	require.NoError(t, json.Unmarshal([]byte(readFile(t, path)), &rows))
	assert.Equal(t, []map[string]string{{"nct_id": "NCT1", "moa": ""}}, rows)
}

func TestWriteJSON_Indent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, WriteJSON(path, map[string]string{"drug_name": "imatinib"}))
	assert.Equal(t, "{\n  \"drug_name\": \"imatinib\"\n}\n", readFile(t, path))
}
