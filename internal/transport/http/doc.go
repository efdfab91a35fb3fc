// Package http implements the dashboard's HTTP handlers. Handlers stay thin:
// they parse and validate the request, call the dashboard service and render
// the result.
//
// # Routes
//
//	POST   /api/sessions                             create a session
//	GET    /api/sessions/{id}                        current snapshot
//	POST   /api/sessions/{id}/dataset                upload (multipart "file" or JSON data URL)
//	DELETE /api/sessions/{id}/dataset                clear the upload
//	PUT    /api/sessions/{id}/filters/{dimension}    {"values": [...]}
//	DELETE /api/sessions/{id}/filters                clear every filter
//	GET    /api/sessions/{id}/export.xlsx            workbook download
//	GET    /api/sessions/{id}/export/{table}.csv     single table download
//	GET    /ws?session={id}                          live snapshots
//
// Successful JSON responses use the envelope
//
//	{"status": "success", "data": ...}
//
// and failures are RFC 7807 problem documents rendered by errors.ErrorHandler.
// An upload that cannot be parsed still answers 200: the snapshot's status
// line carries the read error.
package http
