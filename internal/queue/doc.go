// Package queue models the spreadsheet-backed job queue.
//
// A shared spreadsheet is the source of truth: writers append rows with a
// script and the 대기 (waiting) status, and the pipeline advances each row
// through 처리중 (processing) to 완료 (done) or 실패 (failed) by rewriting
// individual cells. The Store interface narrows that contract to reading
// all rows and updating one cell, which keeps fakes trivial; SheetStore is
// the production implementation on the Google Sheets API with bounded
// retries around every remote call.
package queue
