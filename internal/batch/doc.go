// Package batch submits OCR records to a provider's batch inference API,
// waits for the job to finish and assembles the extracted Darwin Core
// records from the output file.
//
// The stages run strictly in sequence on the caller's goroutine:
//
//	FormatRequests -> EncodeJSONL -> Provider.UploadBatchFile -> Provider.CreateBatch
//	Poller.Wait -> Provider.DownloadFile -> Assemble
//
// Processor wires them together for a single batch.
package batch
