// Package v1 defines the manifest carried by every model archive.
// The manifest is the only part of an archive the store interprets; all other
// files are model artifacts that are handed to the serving runtime untouched.
//
// A minimal manifest looks like this:
//
//	{
//	  "createdOn": "28/07/2020 06:32:08",
//	  "runtime": "python",
//	  "model": {
//	    "modelName": "noop",
//	    "serializedFile": "model.pt",
//	    "handler": "service.py",
//	    "modelVersion": "1.0"
//	  },
//	  "archiverVersion": "0.2.0"
//	}
//
// The manifest is looked up at MAR-INF/MANIFEST.json, then MANIFEST.json and finally
// manifest.yaml or manifest.yml at the root of the archive.
package v1
