package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	SourcesDir        string
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	FirstRunLimit     int
	APIAccessKey      string

	// Enrichment configuration
	AnthropicAPIKey string
	AnthropicModel  string
	EnrichDelay     int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
