package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Laporan Sertifikasi",
		Notes:   []string{"Provinsi: jawa-barat"},
		Headers: []string{"NIP", "Nama", "Status"},
		Rows: []map[string]string{
			{"NIP": "198501012010011001", "Nama": "Budi, S.T.", "Status": "VERIFIED"},
			{"NIP": "199002022015022002", "Nama": "Siti", "Status": "PENDING"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "\ufeffNIP,Nama,Status\r\n198501012010011001,\"Budi, S.T.\",VERIFIED\r\n199002022015022002,Siti,PENDING\r\n", string(out))
}

func TestCSVExporterNeutralizesFormulas(t *testing.T) {
	ds := Dataset{
		Headers: []string{"Nama", "Alasan"},
		Rows:    []map[string]string{{"Nama": "=HYPERLINK(\"http://x\")", "Alasan": "-5 hari"}, {"Nama": "Siti"}},
	}
	out, err := (&CSVExporter{NoBOM: true}).Render(ds)
	require.NoError(t, err)
	assert.Equal(t, "Nama,Alasan\r\n\"'=HYPERLINK(\"\"http://x\"\")\",'-5 hari\r\nSiti,\r\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	ds := sampleDataset()
	for i := 0; i < 60; i++ {
		ds.Rows = append(ds.Rows, map[string]string{"NIP": "198501012010011001", "Nama": "Nama yang sangat panjang sekali untuk dipotong di kolom", "Status": "VERIFIED"})
	}
	out, err := NewPDFExporter().Render(ds)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
