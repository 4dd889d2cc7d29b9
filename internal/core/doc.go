// Package core provides the business logic for contact outreach uploads.
//
// The package turns a contact spreadsheet into messaging-ready contacts. It
// has no transport dependencies and is shared by the web handlers and the
// outreach CLI.
//
// # Pipeline
//
// Every upload follows the same steps:
//
//  1. [ReadFile] parses a CSV, XLSX or XLS file into a [Batch]
//  2. [CleanBatch] trims values, maps sentinels to [Missing] and reduces
//     phone columns to digits
//  3. [ValidateBatch] checks the header and annotates rows with warnings
//  4. [ExtractContacts] keeps rows with a phone that [NormalizePhone] accepts
//  5. [Composer] renders the message template and click-to-chat link
//
// [Processor.ProcessUpload] runs steps 2-4 and always returns an
// [UploadResponse] with a [Status]:
//
//   - ok: contacts were extracted
//   - client_error: the file needs fixing; the message is shown verbatim
//   - server_error: something unexpected; the message is opaque
//
// # Phone Numbers
//
// Canonical phones are 7-15 digits with the country code and no '+'. The
// normalization heuristics assume UK numbers when no country code is given.
// See phone.go for the rules.
//
// # Templates
//
// Templates use literal placeholders from [MergeFields]. Unknown tokens are
// left verbatim. An empty template renders [DefaultMessage].
//
// # Audit
//
// When a [Processor] has an [AuditRecorder], each upload is summarized as an
// [UploadAudit] with counts and request metadata only.
//
// # Concurrency
//
// The pipeline functions are pure and safe to call concurrently.
// [UploadLimiter] bounds how many uploads the web server parses at once.
package core
