// Command mvx moves or converts a file based on the destination extension.
//
// A plain move happens when source and destination share a content type;
// otherwise mvx picks a remux, transcode, or format conversion, runs the
// external tool into a temporary file next to the destination, and publishes
// it atomically. The batch subcommand applies the same pipeline to many
// inputs on a bounded worker pool.
package main
