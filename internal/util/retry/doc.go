// Package retry repeats network-bound steps that fail transiently.
//
// [Do] runs an operation up to a fixed number of attempts with exponential
// backoff between them. It is used for source checkouts, archive downloads
// and package index refreshes; build and install steps are never retried.
package retry
