package utils

import "time"

// FTP defaults
const (
	DefaultFTPPort     = 21
	DefaultFTPUser     = "anonymous"
	DefaultFTPBasepath = "/"
	DefaultFTPTimeout  = 30 * time.Second
	// DefaultStatCacheSize is the initial capacity of the FTP stat store.
	DefaultStatCacheSize = 5000
	// TreeCacheTTL bounds how long a cached FTP directory tree serves walks.
	TreeCacheTTL = 60 * time.Second
	// StatCacheGrowth is applied to the entry count of a directory that fills the stat store.
	StatCacheGrowth = 1.1
)

// Defaults for the command line
const (
	DefaultLogFile = "sync.log"
	KeyringService = "dirsync"
	EnvPrefix      = "DIRSYNC"
)

// SchemaVersion tags JSON command output.
const SchemaVersion = "1.0"
