package http

const (
	Ping    = "Ping"
	Version = "Version"
	Models  = "Models"

	Assemble = "Assemble"
	Validate = "Validate"
	Apply    = "Apply"
	Ask      = "Ask"

	// Preview is a websocket; it's here so it's named in metrics and
	// logging like everything else.
	Preview = "Preview"
)
