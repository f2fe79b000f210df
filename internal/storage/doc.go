// Package storage persists fetched page content.
//
// A Sink receives a file name generated by the crawler and the bytes to
// store. LocalSink writes into a directory on disk that is created on the
// first write, so runs that persist nothing leave nothing behind.
package storage
