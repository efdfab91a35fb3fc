// Package exporter turns a computed dashboard into downloadable files.
//
// WriteWorkbook produces an Excel workbook with a summary sheet followed by
// one sheet per chart table. WriteTableCSV writes a single table as CSV with
// a UTF-8 BOM so Excel opens it with the right encoding. Both pivot the
// per-gender chart rows into one row per category:
//
//	Category, Label, Male, Female, Total
package exporter
