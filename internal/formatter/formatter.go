// package formatter reads batch entry files and renders batch reports in various formats (CSV, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/licentry/internal/models"
	"github.com/desertthunder/licentry/internal/shared"
)

// Report formats accepted by [WriteReport].
const (
	FormatCSV  = "csv"
	FormatText = "text"
)

// entryColumns are the header names recognized in a batch input file. Column order is free.
var entryColumns = []string{"username", "birth_date", "email", "phone"}

// ReportRow is one line of a batch report.
type ReportRow struct {
	Index    int           // Position in the input file, 1-based
	Username string        // Entry username
	Email    string        // Entry email
	UserID   string        // Provider id, empty on failure
	Err      error         // Failure, nil on success
	Duration time.Duration // Time spent on this entry
}

// Status returns "ok" or "failed".
func (r ReportRow) Status() string {
	if r.Err != nil {
		return "failed"
	}
	return "ok"
}

// ReadEntriesCSV parses a batch input file with a header row naming username, birth_date, email and phone.
//
// Blank lines are skipped. Values are normalized but not validated; validation happens per entry at submit time.
func ReadEntriesCSV(r io.Reader) ([]models.LicenseEntry, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: entries file is empty", shared.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, col := range entryColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: entries file is missing columns: %s", shared.ErrInvalidInput, strings.Join(missing, ", "))
	}

	var entries []models.LicenseEntry
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		entry := models.LicenseEntry{
			Username:  record[index["username"]],
			BirthDate: record[index["birth_date"]],
			Email:     record[index["email"]],
			Phone:     record[index["phone"]],
		}
		entries = append(entries, entry.Normalize())
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: entries file has no rows", shared.ErrInvalidInput)
	}
	return entries, nil
}

// ReadEntriesFile opens path and parses it with [ReadEntriesCSV].
func ReadEntriesFile(path string) ([]models.LicenseEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open entries file: %w", err)
	}
	defer f.Close()

	return ReadEntriesCSV(f)
}

// ReportToCSV converts report rows to CSV format with columns: Index, Username, Email, Status, UserID, Error, DurationMs
func ReportToCSV(rows []ReportRow) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Index", "Username", "Email", "Status", "UserID", "Error", "DurationMs"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range rows {
		errText := ""
		if row.Err != nil {
			errText = row.Err.Error()
		}
		record := []string{
			strconv.Itoa(row.Index),
			row.Username,
			row.Email,
			row.Status(),
			row.UserID,
			errText,
			strconv.FormatInt(row.Duration.Milliseconds(), 10),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ReportToText converts report rows to a plain text summary
func ReportToText(rows []ReportRow) ([]byte, error) {
	var buf bytes.Buffer

	succeeded := 0
	for _, row := range rows {
		if row.Err == nil {
			succeeded++
		}
	}

	buf.WriteString(fmt.Sprintf("Entries: %d\n", len(rows)))
	buf.WriteString(fmt.Sprintf("Succeeded: %d\n", succeeded))
	buf.WriteString(fmt.Sprintf("Failed: %d\n\n", len(rows)-succeeded))

	for _, row := range rows {
		if row.Err != nil {
			buf.WriteString(fmt.Sprintf("%d. ✗ %s <%s>: %v\n", row.Index, row.Username, row.Email, row.Err))
			continue
		}
		buf.WriteString(fmt.Sprintf("%d. ✓ %s <%s> provider %s (%s)\n",
			row.Index, row.Username, row.Email, row.UserID, row.Duration.Round(time.Millisecond)))
	}

	return buf.Bytes(), nil
}

// WriteReport renders rows in format and writes them to w.
func WriteReport(w io.Writer, rows []ReportRow, format string) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = ReportToCSV(rows)
	case FormatText, "":
		data, err = ReportToText(rows)
	default:
		return fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// WriteReportFile writes the report to filepath and returns the path written.
func WriteReportFile(rows []ReportRow, format, filepath string) (string, error) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, rows, format); err != nil {
		return "", err
	}

	if err := os.WriteFile(filepath, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return filepath, nil
}
