package protocol

// Directory, file and environment names used throughout Empacy.
const (
	// EmpacyDir is the user-level state directory (e.g., ~/.empacy).
	EmpacyDir = ".empacy"

	// ProjectsDir is the default scaffolding root, relative to the working directory.
	ProjectsDir = "projects"

	// SocketFile is the coordinator UDS socket name inside EmpacyDir.
	SocketFile = "empacy.sock"

	// JournalFile is the SQLite audit journal name inside EmpacyDir.
	JournalFile = "journal.db"

	// ServiceName tags every log line and generated manifest.
	ServiceName = "empacy"
)

// Environment variable overrides.
const (
	EnvHome        = "EMPACY_HOME"
	EnvSocketPath  = "EMPACY_SOCKET_PATH"
	EnvDBPath      = "EMPACY_DB_PATH"
	EnvProjectsDir = "EMPACY_PROJECTS_DIR"
	EnvLogLevel    = "EMPACY_LOG_LEVEL"
)

// Registry limits.
const (
	// MaxAccessLogRecords caps the context access log; oldest entries are evicted.
	MaxAccessLogRecords = 1000

	// MaxHistoryRecords caps the concept history log.
	MaxHistoryRecords = 1000

	// RecentActivityLimit is the number of access-log entries reported by context stats.
	RecentActivityLimit = 10
)
