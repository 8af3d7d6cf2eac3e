// Package s3 archives execution logs to S3-compatible object storage.
//
// Credentials come from the archive configuration when both keys are set,
// otherwise from the default AWS credential chain. A custom endpoint
// switches the client to path-style addressing, which is what MinIO and most
// self-hosted stores expect.
package s3
