// Package modelarchive makes packaged model archives available in a local model store.
//
// A model archive is a bundle of a manifest and model artifacts, shipped as a ZIP based
// .mar file, a TAR archive or an already exploded directory. A Store acquires archives from
// four kinds of references:
//
//   - names of files or directories already present in the store ("noop.mar"),
//   - local paths inside the store or one of its allowed roots ("/mnt/models/noop.mar"),
//   - file URIs ("file:///mnt/models/noop.mar"),
//   - HTTP(S) URLs ("https://example.com/models/noop.mar").
//
// Acquisition is transactional. The archive is fetched into a temporary file, unpacked into a
// hidden staging directory and its manifest is validated before the result is renamed to
// <root>/<name>. Any failure removes everything the call created, so the store never exposes a
// partially extracted archive under its canonical name.
//
// Operations on the same archive name are serialized, operations on different names run
// concurrently:
//
//	store, err := modelarchive.Open("/var/lib/models")
//	if err != nil {
//		return err
//	}
//	archive, err := store.Acquire(ctx, "noop.mar")
//	if err != nil {
//		return err
//	}
//	fmt.Println(archive.ModelName(), archive.Path())
package modelarchive
