package menu

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadWorkbookKeepsNumericCells(t *testing.T) {
	buf := workbook(t, [][]any{
		{"ItemNameEn", "ItemPrice", "Availability", "ItemNamePt"},
		{"Har Gow", 5.2, 1, "Har Gow"},
		{"Siu Mai", "4,80", "1"},
	})

	grid, err := ReadWorkbook(buf)
	require.NoError(t, err)
	require.Len(t, grid, 3)

	assert.Equal(t, "ItemNameEn", grid[0][0])
	assert.Equal(t, 5.2, grid[1][1])
	assert.Equal(t, 1.0, grid[1][2])
	assert.Equal(t, "4,80", grid[2][1])
	assert.Equal(t, "1", grid[2][2])

	rows, err := Normalize(grid)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 5.2, BuildDocument(rows[0], 0).Metadata.Price)
	assert.Equal(t, 4.8, BuildDocument(rows[1], 1).Metadata.Price)
	assert.True(t, BuildDocument(rows[0], 0).Metadata.Available)
}

func TestReadWorkbookRejectsGarbage(t *testing.T) {
	_, err := ReadWorkbook(strings.NewReader("not a zip"))
	var perr *ParseError
	assert.True(t, errors.As(err, &perr))
}

func TestReadCSV(t *testing.T) {
	data := "\ufeffItemNameEn,ItemPrice,ItemDescriptionEn\n" +
		"Turnip Cake,\"3,90\",Pan-fried\n" +
		"Egg Tart,2.5\n"

	grid, err := ReadCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, grid, 3)
	assert.Equal(t, "ItemNameEn", grid[0][0])
	assert.Equal(t, "3,90", grid[1][1])
	assert.Len(t, grid[2], 2)
}

func TestReadUploadDispatch(t *testing.T) {
	grid, err := ReadUpload("Menu.CSV", strings.NewReader("ItemNameEn\nBao\n"))
	require.NoError(t, err)
	assert.Len(t, grid, 2)

	_, err = ReadUpload("menu.pdf", strings.NewReader(""))
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.Reason, "unsupported file type")
}
