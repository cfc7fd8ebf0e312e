package usecase

import "adcp-engine/internal/core/port"

// FormatCatalog returns the static creative-format catalog. The catalog is
// configuration, not mutable engine state; agentURL names the defining agent
// for every entry.
func FormatCatalog(agentURL string) []port.FormatSpec {
	specs := []port.FormatSpec{
		{ID: "display_300x250", Name: "Medium Rectangle", Type: "display"},
		{ID: "display_728x90", Name: "Leaderboard", Type: "display"},
		{ID: "display_160x600", Name: "Wide Skyscraper", Type: "display"},
		{ID: "video_preroll_640x480", Name: "Pre-Roll Video", Type: "video"},
		{ID: "video_midroll_1280x720", Name: "Mid-Roll Video", Type: "video"},
		{ID: "video_outstream_1920x1080", Name: "Outstream Video", Type: "video"},
		{ID: "native_feed", Name: "Native Feed", Type: "native"},
		{ID: "native_content", Name: "Native Content", Type: "native"},
		{ID: "native_app_install", Name: "Native App Install", Type: "native"},
	}
	for i := range specs {
		specs[i].AgentURL = agentURL
	}
	return specs
}
