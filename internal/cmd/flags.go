package cmd

const (
	// ConfigFlag points to a configuration file of type modelarchive.config.ocm.software/v1alpha1.
	ConfigFlag = "config"
	// ConfigEnvironmentKey is read for the configuration file if ConfigFlag is not set.
	ConfigEnvironmentKey = "MODELARCHIVE_CONFIG"
	// StoreFlag is the root directory of the model store.
	StoreFlag = "store"
	// AllowedRootFlag adds a directory local archives may be acquired from. Repeatable.
	AllowedRootFlag = "allowed-root"
	// WorkingDirectoryFlag is the directory relative local references are resolved against.
	WorkingDirectoryFlag = "working-directory"
	// VersionedFlag extracts archives into <name>-<version> directories.
	VersionedFlag = "versioned"
	// DownloadTimeoutFlag bounds a single remote download.
	DownloadTimeoutFlag = "download-timeout"
	// MetricsTextfileFlag writes the acquisition metrics in the Prometheus text format after the command ran.
	MetricsTextfileFlag = "metrics-textfile"
)
