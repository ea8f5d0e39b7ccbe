package baseline

// Comparison statuses.
const (
	StatusCritical = "critical"
	StatusWarning  = "warning"
	StatusImproved = "improved"
	StatusStable   = "stable"
)

// ComparisonResult is the outcome of comparing a run against its baseline.
type ComparisonResult struct {
	Baseline     *Result
	Current      *Result
	Regressions  []RegressionItem
	Improvements []ImprovementItem
	HasCritical  bool
	HasWarning   bool
}

// Status returns critical, warning, improved or stable, in that priority.
func (c *ComparisonResult) Status() string {
	switch {
	case c.HasCritical:
		return StatusCritical
	case c.HasWarning:
		return StatusWarning
	case c.HasImprovements():
		return StatusImproved
	default:
		return StatusStable
	}
}

// HasRegressions reports whether any metric regressed.
func (c *ComparisonResult) HasRegressions() bool {
	return len(c.Regressions) > 0
}

// HasImprovements reports whether any metric improved.
func (c *ComparisonResult) HasImprovements() bool {
	return len(c.Improvements) > 0
}

// ShouldFailCI reports whether a pipeline gate should fail: only critical
// regressions do, warnings never.
func (c *ComparisonResult) ShouldFailCI() bool {
	return c.HasCritical
}

// Regression returns the regression recorded for metric, if any.
func (c *ComparisonResult) Regression(metric string) (RegressionItem, bool) {
	for _, r := range c.Regressions {
		if r.Metric == metric {
			return r, true
		}
	}

	return RegressionItem{}, false
}

// ComparisonExport is the serialized form of a ComparisonResult.
type ComparisonExport struct {
	Status          string            `json:"status"`
	HasRegressions  bool              `json:"has_regressions"`
	HasImprovements bool              `json:"has_improvements"`
	Baseline        *Result           `json:"baseline"`
	Current         *Result           `json:"current"`
	Regressions     []RegressionItem  `json:"regressions"`
	Improvements    []ImprovementItem `json:"improvements"`
}

// Export returns the serializable form of c. Empty lists export as [].
func (c *ComparisonResult) Export() *ComparisonExport {
	regressions := c.Regressions
	if regressions == nil {
		regressions = []RegressionItem{}
	}

	improvements := c.Improvements
	if improvements == nil {
		improvements = []ImprovementItem{}
	}

	return &ComparisonExport{
		Status:          c.Status(),
		HasRegressions:  c.HasRegressions(),
		HasImprovements: c.HasImprovements(),
		Baseline:        c.Baseline,
		Current:         c.Current,
		Regressions:     regressions,
		Improvements:    improvements,
	}
}
