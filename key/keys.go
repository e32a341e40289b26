// Package key defines the canonical set of configuration identifiers used for centralized settings management.
package key

// Provider Source Identifiers - these keys manage the registration and selection of streaming providers.
const (
	DefaultSources = "sources.default"
)

// Search Discovery - these keys govern keyword search fan-out against provider endpoints.
const (
	SearchPageSize             = "search.page_size"
	SearchLimit                = "search.limit"
	SearchConcurrency          = "search.concurrency"
	SearchShowQuerySuggestions = "search.show_query_suggestions"
)

// Download Pipeline - these keys control the download orchestration and stream assembly behavior.
const (
	DownloadDir                = "download.dir"
	DownloadConcurrency        = "download.concurrency"
	DownloadSegmentConcurrency = "download.segment_concurrency"
	DownloadFormat             = "download.format"
	DownloadLyrics             = "download.lyrics"
	DownloadTrackNumberPrefix  = "download.track_number_prefix"
	DownloadSkipHistory        = "download.skip_downloaded"
)

// Network Transport - these keys tune the shared HTTP client and its retry policy.
const (
	NetworkMaxRetries     = "network.max_retries"
	NetworkTimeoutSeconds = "network.timeout_seconds"
)

// History Tracking - these keys configure the persistence of completed download state.
const (
	HistorySaveOnDownload = "history.save_on_download"
)

// Iconography - these keys manage the visual rendering of CLI symbols.
const (
	IconsVariant = "icons.variant"
)

// Logging Infrastructure - these keys manage the application's internal diagnostics and auditing system.
const (
	LogsWrite = "logs.write"
	LogsLevel = "logs.level"
	LogsJson  = "logs.json"
)

// CLI Execution Environment - these flags and settings govern the terminal application behavior.
const (
	CliColored      = "cli.colored"
	CliVersionCheck = "cli.version_check"
)
