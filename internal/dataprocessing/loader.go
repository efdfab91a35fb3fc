package dataprocessing

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"enrolldash/internal/errors"
	"enrolldash/pkg/contracts/domain"
)

// DefaultPreambleLines is the number of metadata lines above the header row.
const DefaultPreambleLines = 4

// naValues are the cell spellings read as missing.
var naValues = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// LoaderConfig controls upload decoding.
type LoaderConfig struct {
	PreambleLines int
	MaxBytes      int64
}

// DefaultLoaderConfig returns the standard upload layout.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		PreambleLines: DefaultPreambleLines,
		MaxBytes:      32 << 20,
	}
}

// Loader turns an uploaded file into a Dataset.
type Loader struct {
	logger *slog.Logger
	config LoaderConfig
}

// NewLoader creates a loader. A nil logger falls back to slog.Default.
func NewLoader(logger *slog.Logger, config LoaderConfig) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if config.PreambleLines < 0 {
		config.PreambleLines = 0
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = DefaultLoaderConfig().MaxBytes
	}
	return &Loader{
		logger: logger.With(slog.String("component", "dataset_loader")),
		config: config,
	}
}

// NormalizeHeader removes hyphens and collapses whitespace so header
// variants map to one canonical name.
func NormalizeHeader(h string) string {
	h = strings.ReplaceAll(h, "-", "")
	h = whitespaceRun.ReplaceAllString(h, " ")
	return strings.TrimSpace(h)
}

// DecodeDataURL extracts the payload of a browser upload. It accepts
// "data:<mime>;base64,<payload>", a percent-encoded data URL, or a bare
// base64 payload.
func DecodeDataURL(contents string) ([]byte, error) {
	contents = strings.TrimSpace(contents)
	if contents == "" {
		return nil, fmt.Errorf("empty upload")
	}

	if !strings.HasPrefix(contents, "data:") {
		payload, err := base64.StdEncoding.DecodeString(contents)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 payload: %w", err)
		}
		return payload, nil
	}

	meta, payload, ok := strings.Cut(contents, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URL: missing ','")
	}
	if strings.HasSuffix(meta, ";base64") {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 payload: %w", err)
		}
		return decoded, nil
	}
	decoded, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid data URL payload: %w", err)
	}
	return []byte(decoded), nil
}

// LoadDataURL decodes a browser upload and loads it.
func (l *Loader) LoadDataURL(ctx context.Context, filename, contents string) (*domain.Dataset, error) {
	data, err := DecodeDataURL(contents)
	if err != nil {
		return nil, errors.NewParsingError("could not decode upload", err).WithContext("filename", filename)
	}
	return l.LoadBytes(ctx, filename, data)
}

// Load reads at most MaxBytes from r and loads it.
func (l *Loader) Load(ctx context.Context, filename string, r io.Reader) (*domain.Dataset, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.config.MaxBytes+1))
	if err != nil {
		return nil, errors.NewParsingError("could not read upload", err).WithContext("filename", filename)
	}
	return l.LoadBytes(ctx, filename, data)
}

// LoadBytes parses a CSV or XLSX upload. Missing cells become
// domain.NotApplicable and headers are normalized.
func (l *Loader) LoadBytes(ctx context.Context, filename string, data []byte) (*domain.Dataset, error) {
	start := time.Now()

	if int64(len(data)) > l.config.MaxBytes {
		return nil, errors.NewParsingError(
			fmt.Sprintf("file exceeds the %d byte upload limit", l.config.MaxBytes), nil,
		).WithContext("filename", filename)
	}

	var (
		header []string
		rows   [][]string
		err    error
	)
	if isSpreadsheet(filename, data) {
		header, rows, err = l.readSpreadsheet(data)
	} else {
		header, rows, err = l.readCSV(data)
	}
	if err != nil {
		l.logger.WarnContext(ctx, "dataset rejected",
			slog.String("filename", filename),
			slog.String("error", err.Error()))
		return nil, errors.NewParsingError("could not parse file", err).WithContext("filename", filename)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = NormalizeHeader(h)
		if columns[i] == "" {
			columns[i] = fmt.Sprintf("Unnamed: %d", i)
		}
	}
	for _, row := range rows {
		for i, cell := range row {
			if _, na := naValues[cell]; na {
				row[i] = ""
			}
		}
	}

	ds := domain.NewDataset(filename, columns, rows)

	if missing := MissingCatalogColumns(ds); len(missing) > 0 {
		l.logger.WarnContext(ctx, "catalog columns missing from upload, reading as zero",
			slog.String("filename", filename),
			slog.Int("missing", len(missing)),
			slog.String("first_missing", missing[0]))
	}
	if extra := UncataloguedColumns(ds); len(extra) > 0 {
		l.logger.DebugContext(ctx, "enrollment columns outside the grade catalog",
			slog.Int("count", len(extra)),
			slog.Any("columns", extra))
	}

	l.logger.InfoContext(ctx, "dataset loaded",
		slog.String("filename", filename),
		slog.Int("rows", ds.Len()),
		slog.Int("columns", len(ds.Columns)),
		slog.Int("enrollment_columns", len(ds.EnrollmentColumns)),
		slog.Duration("duration", time.Since(start)))

	return ds, nil
}

func (l *Loader) readCSV(data []byte) ([]string, [][]string, error) {
	if !utf8.Valid(data) {
		return nil, nil, fmt.Errorf("file is not valid UTF-8")
	}
	data, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), data)
	if err != nil {
		return nil, nil, fmt.Errorf("decode UTF-8: %w", err)
	}

	br := bufio.NewReader(bytes.NewReader(data))
	for i := 0; i < l.config.PreambleLines; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			if err == io.EOF {
				return nil, nil, fmt.Errorf("no columns to parse from file")
			}
			return nil, nil, err
		}
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("no columns to parse from file")
	}
	if err != nil {
		return nil, nil, l.csvError(err)
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, l.csvError(err)
		}
		line, _ := reader.FieldPos(0)
		if err := checkRowWidth(header, record, line+l.config.PreambleLines); err != nil {
			return nil, nil, err
		}
		rows = append(rows, record)
	}
	return header, rows, nil
}

func (l *Loader) csvError(err error) error {
	if pe, ok := err.(*csv.ParseError); ok {
		return fmt.Errorf("line %d: %w", pe.Line+l.config.PreambleLines, pe.Err)
	}
	return err
}

func (l *Loader) readSpreadsheet(data []byte) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(all) <= l.config.PreambleLines {
		return nil, nil, fmt.Errorf("no columns to parse from file")
	}

	header := all[l.config.PreambleLines]
	var rows [][]string
	for i := l.config.PreambleLines + 1; i < len(all); i++ {
		row := all[i]
		if isBlankRow(row) {
			continue
		}
		// Styled empty cells past the header hold no value
		for len(row) > len(header) && strings.TrimSpace(row[len(row)-1]) == "" {
			row = row[:len(row)-1]
		}
		if err := checkRowWidth(header, row, i+1); err != nil {
			return nil, nil, err
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// checkRowWidth rejects a data row with more cells than the header has
// columns. line is 1-based within the uploaded file.
func checkRowWidth(header, row []string, line int) error {
	if len(row) > len(header) {
		return fmt.Errorf("expected %d fields in line %d, saw %d", len(header), line, len(row))
	}
	return nil
}

func isSpreadsheet(filename string, data []byte) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".xlsx" || ext == ".xlsm" {
		return true
	}
	return bytes.HasPrefix(data, []byte("PK\x03\x04"))
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
