// Package archive reads and writes the container formats a model archive can be shipped in:
// plain directories, ZIP based model archives (.mar, .zip) and TAR archives that are
// uncompressed, GZip compressed or Zstandard compressed.
//
// Extraction is restricted to the destination directory. Entries with absolute names,
// ".." elements or links pointing outside of the destination abort the whole extraction.
package archive
