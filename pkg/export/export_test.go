package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Docente", "Puntaje"},
		Rows: []map[string]string{
			{"Docente": "Ñahui, José", "Puntaje": "18"},
			{"Docente": "Quispe, Ana", "Puntaje": ""},
		},
		Widths:  map[string]float64{"Docente": 25, "Puntaje": 12},
		Numeric: map[string]bool{"Puntaje": true},
	}
}

func TestCSVExporterWritesBOMAndRows(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	text := string(out)
	assert.True(t, strings.HasPrefix(text, "\ufeffDocente,Puntaje\n"))
	assert.Contains(t, text, "\"Ñahui, José\",18\n")

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestXLSXExporterTypesAndWidths(t *testing.T) {
	out, err := NewXLSXExporter().Render(sampleDataset(), "Evaluaciones")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Evaluaciones"}, f.GetSheetList())
	rows, err := f.GetRows("Evaluaciones")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Docente", "Puntaje"}, rows[0])
	assert.Equal(t, "Ñahui, José", rows[1][0])

	cellType, err := f.GetCellType("Evaluaciones", "B2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, cellType)
	assert.Equal(t, "18", rows[1][1])

	width, err := f.GetColWidth("Evaluaciones", "A")
	require.NoError(t, err)
	assert.InDelta(t, 25, width, 0.01)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Hoja1", SheetName("  "))
	assert.Equal(t, "Evaluaciones_2024", SheetName("Evaluaciones/2024"))
	long := SheetName("Evaluaciones de Fernández Gutiérrez, María Alejandra")
	assert.Equal(t, 31, len([]rune(long)))
	assert.True(t, strings.HasPrefix(long, "Evaluaciones de Fernández"))
}

func TestPDFExporterRendersDocument(t *testing.T) {
	exporter := NewPDFExporter()
	exporter.Landscape = true
	out, err := exporter.Render(sampleDataset(), "Resumen de evaluaciones", "Institución Educativa")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = exporter.Render(Dataset{}, "")
	assert.Error(t, err)
}

func TestDatasetSubset(t *testing.T) {
	sub := sampleDataset().Subset("Puntaje")
	assert.Equal(t, []string{"Puntaje"}, sub.Headers)
	assert.Equal(t, []string{"18"}, sub.Record(sub.Rows[0]))
}
