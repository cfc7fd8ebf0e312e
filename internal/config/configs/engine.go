package configs

import "time"

// Engine holds the tunables of the media-buy engine. Monetary thresholds are
// in minor currency units.
type Engine struct {
	// CreativeDeadlineOffset is subtracted from the flight start date to
	// derive the creative-submission deadline.
	CreativeDeadlineOffset time.Duration `env:"CREATIVE_DEADLINE_OFFSET" envDefault:"48h"`

	// ApprovalThreshold is the total budget above which a new buy is
	// flagged for human approval in its workflow metadata.
	ApprovalThreshold int64 `env:"APPROVAL_THRESHOLD" envDefault:"1000000"`

	// PacingTolerance is the band, as a fraction, within which spend
	// pacing counts as on track against time pacing.
	PacingTolerance float64 `env:"PACING_TOLERANCE" envDefault:"0.10"`

	// KAnonymityFloor is the minimum overlap count a matched audience
	// must carry to be servable.
	KAnonymityFloor int64 `env:"K_ANONYMITY_FLOOR" envDefault:"1000"`

	// FormatAgentURL is the defining-agent URL advertised in the static
	// creative-format catalog.
	FormatAgentURL string `env:"FORMAT_AGENT_URL" envDefault:"http://localhost:8080/mcp"`
}
