package app

const (
	Name           = "meshhttp"
	SourceURL      = "https://git.skobk.in/skobkin/meshhttp"
	ConfigFilename = "config.json"
	LogFilename    = "meshhttp.log"
)
