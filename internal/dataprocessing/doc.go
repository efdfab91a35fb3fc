// Package dataprocessing turns an uploaded enrollment file into the
// dashboard's outputs. Every function here is pure: the session layer owns
// the state and calls in after each event.
//
// # Pipeline
//
//	upload bytes → Loader → Dataset → ApplyFilters → Aggregate → Dashboard
//	                           └────→ ResolveOptions → Options
//
// The Loader skips the report preamble, normalizes headers and reads either
// CSV or an XLSX workbook. Enrollment columns are coerced to numbers on a
// best-effort basis; anything unparseable counts as zero.
//
// ComputeBaselines runs once per upload and records the unfiltered totals
// that the summary cards compare against.
//
// # Catalog
//
// catalog.go fixes the grade, band and senior-high track columns the
// tables read. Columns absent from a file contribute zero, so older exports
// with fewer tracks still aggregate.
//
// # Usage
//
//	loader := dataprocessing.NewLoader(logger, dataprocessing.DefaultLoaderConfig())
//	ds, err := loader.LoadBytes(ctx, "enrollment.csv", data)
//	if err != nil {
//	    return err
//	}
//	base := dataprocessing.ComputeBaselines(ds)
//	dash := dataprocessing.Aggregate(ds, base, &selection)
//	opts := dataprocessing.ResolveOptions(ds, &selection)
package dataprocessing
