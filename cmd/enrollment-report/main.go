// Command enrollment-report computes the enrollment dashboard for a file
// on disk, without starting the web server.
//
//	enrollment-report summary enrollment.csv --region NCR --tables
//	enrollment-report options enrollment.csv --region NCR
//	enrollment-report export enrollment.csv -o dashboard.xlsx --csv-dir tables/
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
