package capture

// Strategy names.
const (
	StrategyPrimary  = "primary"
	StrategyFallback = "fallback"
)

// StrictStylesheet flattens effects that do not rasterize faithfully and
// hides the download controls.
const StrictStylesheet = `
* {
  box-sizing: border-box !important;
  transform: none !important;
  filter: none !important;
  backdrop-filter: none !important;
  -webkit-transform: none !important;
  -webkit-filter: none !important;
}
.resume-card {
  scale: none !important;
  margin: 0 !important;
  border: none !important;
  border-radius: 0 !important;
  box-shadow: none !important;
  opacity: 1 !important;
  background: #ffffff !important;
  overflow: visible !important;
}
.resume-card * {
  box-shadow: none !important;
  transition: none !important;
  animation: none !important;
}
.download-pdf-btn,
.resume-download-container {
  display: none !important;
}
`

// LooseStylesheet only removes transforms and shadows from the card.
const LooseStylesheet = `
.resume-card {
  transform: none !important;
  box-shadow: none !important;
  background: #ffffff !important;
}
`

// Strategy describes one capture attempt.
type Strategy struct {
	Name  string
	Scale float64
	// FixedWidth lays the node out at the capturer's page width.
	FixedWidth       bool
	FullHeight       bool
	Stylesheet       string
	AllowCrossOrigin bool
	Background       string
}

// PrimaryStrategy captures at double density, at page width, over the full
// content height, with strict normalization and same-origin assets only.
func PrimaryStrategy() Strategy {
	return Strategy{
		Name:       StrategyPrimary,
		Scale:      2,
		FixedWidth: true,
		FullHeight: true,
		Stylesheet: StrictStylesheet,
		Background: "#ffffff",
	}
}

// FallbackStrategy captures the node as rendered at single density and
// tolerates cross-origin assets.
func FallbackStrategy() Strategy {
	return Strategy{
		Name:             StrategyFallback,
		Scale:            1,
		Stylesheet:       LooseStylesheet,
		AllowCrossOrigin: true,
		Background:       "#ffffff",
	}
}

func (s Strategy) options(pageWidth float64) ShotOptions {
	opts := ShotOptions{
		Scale:            s.Scale,
		FullHeight:       s.FullHeight,
		Stylesheet:       s.Stylesheet,
		AllowCrossOrigin: s.AllowCrossOrigin,
		Background:       s.Background,
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	if s.FixedWidth {
		opts.Width = pageWidth
	}
	return opts
}
