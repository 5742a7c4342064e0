package table

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func mustLoad(t *testing.T, data string) *Table {
	t.Helper()
	tbl, err := Load(strings.NewReader(data))
	require.NoError(t, err)
	return tbl
}

func TestLoad_Basic(t *testing.T) {
	tbl := mustLoad(t, "nome,idade\nAna Silva,30\nBruno,25\n")

	assert.Equal(t, []string{"nome", "idade"}, tbl.Columns())
	assert.Equal(t, 2, tbl.NumRows())
	assert.Equal(t, 2, tbl.NumColumns())

	v, ok := tbl.At(0, 0)
	require.True(t, ok)
	assert.Equal(t, Text("Ana Silva"), v)

	v, ok = tbl.At(1, 1)
	require.True(t, ok)
	assert.Equal(t, Number("25"), v)
}

func TestLoad_KindInference(t *testing.T) {
	tbl := mustLoad(t, "nome,idade,cidade\nAna,30,\n,NaN,Rio\nCaio,x,SP\n")

	nome, _ := tbl.ColumnValues("nome")
	assert.Equal(t, []Value{Text("Ana"), Null(), Text("Caio")}, nome)

	// One non-numeric cell makes the whole column textual.
	idade, _ := tbl.ColumnValues("idade")
	assert.Equal(t, []Value{Text("30"), Null(), Text("x")}, idade)

	cidade, _ := tbl.ColumnValues("cidade")
	assert.Equal(t, []Value{Null(), Text("Rio"), Text("SP")}, cidade)
}

func TestLoad_ShortRowsPadded(t *testing.T) {
	tbl := mustLoad(t, "a,b,c\n1,2\n")

	row := tbl.Row(0)
	require.Len(t, row, 3)
	assert.Equal(t, Null(), row[2])
}

func TestLoad_LongRowIsParseError(t *testing.T) {
	_, err := Load(strings.NewReader("a,b\n1,2,3\n"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
	assert.Contains(t, err.Error(), "expected 2 fields in line 2, saw 3")
}

func TestLoad_EmptyFile(t *testing.T) {
	_, err := Load(strings.NewReader(""))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
	assert.True(t, errors.Is(err, ErrEmptyFile))
}

func TestLoad_MalformedQuotes(t *testing.T) {
	_, err := Load(strings.NewReader("nome\n\"Ana\n"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
}

func TestLoad_BOMAndInvalidUTF8(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("nome\nJo\x80o Silva\n")...)
	tbl, err := Load(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"nome"}, tbl.Columns())
	v, _ := tbl.At(0, 0)
	assert.Equal(t, "Jo\uFFFDo Silva", v.Raw)
}

func TestLoad_HeaderNormalization(t *testing.T) {
	tbl := mustLoad(t, "a,,a,a.1,a\n1,2,3,4,5\n")

	assert.Equal(t, []string{"a", "Unnamed: 1", "a.1", "a.1.1", "a.2"}, tbl.Columns())
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.csv"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRequireColumn(t *testing.T) {
	tbl := mustLoad(t, "idade,cidade\n30,Rio\n")

	err := tbl.RequireColumn("nome")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))
	assert.Equal(t, `missing required column "nome"`, err.Error())

	// Matching is case-sensitive.
	tbl = mustLoad(t, "Nome\nAna\n")
	assert.True(t, errors.Is(tbl.RequireColumn("nome"), ErrSchema))
}

func TestFirstToken(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"two words", "Ana Silva", "Ana"},
		{"single word", "Bruno", "Bruno"},
		{"many words", "Maria da Silva Santos", "Maria"},
		{"leading space", "  Ana Silva", "Ana"},
		{"trailing space", "Ana ", "Ana"},
		{"tab separated", "Ana\tSilva", "Ana"},
		{"newline separated", "Ana\nSilva", "Ana"},
		{"non-breaking space", "Ana\u00a0Silva", "Ana"},
		{"unit separator", "Ana\x1fSilva", "Ana"},
		{"file separator", "Ana\x1cSilva", "Ana"},
		{"leading record separator", "\x1eAna Silva", "Ana"},
		{"separators only unchanged", "\x1d\x1f", "\x1d\x1f"},
		{"control char is not a separator", "Ana\x1bSilva", "Ana\x1bSilva"},
		{"empty unchanged", "", ""},
		{"whitespace only unchanged", "   ", "   "},
		{"unicode word", "José Álvares", "José"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FirstToken(tt.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	src := mustLoad(t, "nome,idade\nAna Silva,30\nBruno,25\n,40\n")

	out, err := src.Truncate("nome")
	require.NoError(t, err)

	assert.Equal(t, src.Columns(), out.Columns())
	assert.Equal(t, src.NumRows(), out.NumRows())

	nome, _ := out.ColumnValues("nome")
	assert.Equal(t, []Value{Text("Ana"), Text("Bruno"), Null()}, nome)

	idadeIn, _ := src.ColumnValues("idade")
	idadeOut, _ := out.ColumnValues("idade")
	assert.Equal(t, idadeIn, idadeOut)

	// Source table is untouched.
	v, _ := src.At(0, 0)
	assert.Equal(t, "Ana Silva", v.Raw)
}

func TestTruncate_NumericColumnUnchanged(t *testing.T) {
	src := mustLoad(t, "nome\n1\n2.5\n")

	out, err := src.Truncate("nome")
	require.NoError(t, err)

	nome, _ := out.ColumnValues("nome")
	assert.Equal(t, []Value{Number("1"), Number("2.5")}, nome)
}

func TestTruncate_MissingColumn(t *testing.T) {
	src := mustLoad(t, "idade,cidade\n30,Rio\n")

	_, err := src.Truncate("nome")
	assert.True(t, errors.Is(err, ErrSchema))
}

func TestTruncate_Idempotent(t *testing.T) {
	src := mustLoad(t, "nome,idade\n\"Ana  Maria Silva\",30\n\" Bruno\",25\n\"  \",1\n")

	once, err := src.Truncate("nome")
	require.NoError(t, err)
	twice, err := once.Truncate("nome")
	require.NoError(t, err)

	assert.Equal(t, once.Records(), twice.Records())
}

func TestWrite(t *testing.T) {
	src := mustLoad(t, "nome,idade,cidade\nAna Silva,30,\nBruno,25,\"São Paulo, SP\"\n")
	out, err := src.Truncate("nome")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, out.Write(&buf))

	want := "nome,idade,cidade\nAna,30,\nBruno,25,\"São Paulo, SP\"\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteFile_RoundTripFixedPoint(t *testing.T) {
	src := mustLoad(t, "nome,idade\nAna Silva,30\nBruno,25\n")
	out, err := src.Truncate("nome")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "csv2.csv")
	require.NoError(t, out.WriteFile(path))

	reloaded, err := LoadFile(path)
	require.NoError(t, err)
	again, err := reloaded.Truncate("nome")
	require.NoError(t, err)

	assert.Equal(t, reloaded.Records(), again.Records())
	assert.Equal(t, [][]string{{"nome", "idade"}, {"Ana", "30"}, {"Bruno", "25"}}, reloaded.Records())
}

func TestWriteFile_Unwritable(t *testing.T) {
	tbl := mustLoad(t, "nome\nAna\n")

	path := filepath.Join(t.TempDir(), "missing-dir", "out.csv")
	err := tbl.WriteFile(path)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWrite))
	assert.Contains(t, err.Error(), path)
}

func TestWriteXLSX(t *testing.T) {
	tbl := mustLoad(t, "nome,idade\nAna,30\n,25\n")

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteXLSX(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(xlsxSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"nome", "idade"}, rows[0])
	assert.Equal(t, []string{"Ana", "30"}, rows[1])
	assert.Equal(t, []string{"", "25"}, rows[2])
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatCSV, FormatForPath("out.csv"))
	assert.Equal(t, FormatXLSX, FormatForPath("OUT.XLSX"))
	assert.Equal(t, FormatCSV, FormatForPath("noext"))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("json")
	assert.Error(t, err)
}

func TestNew_RejectsRaggedRows(t *testing.T) {
	_, err := New([]string{"a", "b"}, [][]Value{{Text("x")}})
	assert.Error(t, err)

	tbl, err := New([]string{"a"}, [][]Value{{Text("x")}, {Null()}})
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.NumRows())
}
