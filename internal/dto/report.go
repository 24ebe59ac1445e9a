package dto

// ReportFormat selects the export renderer.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportFile is a rendered export ready to stream.
type ReportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	RowCount    int
}
