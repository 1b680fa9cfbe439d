// Package filesystem manages the temporary files used by staged-file encoding.
//
// Each TempArtifact is owned by exactly one encode job. Its name embeds the
// job identifier, and Remove deletes it at most once, treating a missing
// file as success.
package filesystem
