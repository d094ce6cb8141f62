// Package vault encrypts vault item content at rest and stores uploaded
// documents in S3 or a local directory.
package vault
