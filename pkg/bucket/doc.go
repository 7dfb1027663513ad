// Package bucket empties versioned S3 buckets so their stacks can be torn
// down. It lists every object version and delete marker page by page and
// removes them with DeleteObjects in batches of up to 1000 keys.
package bucket
