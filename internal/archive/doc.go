// Package archive keeps an optional off-site copy of processed screenshots.
//
// Objects are content addressed by SHA-256 under the configured prefix and
// are encrypted to an age X25519 recipient when one is configured. S3Sink
// uploads through the AWS SDK transfer manager; MemorySink backs tests.
package archive
