package core

// NewReport returns a report with every bucket present and empty.
func NewReport() *Report {
	return &Report{
		Repos:  newCategoryReport(),
		Addons: newCategoryReport(),
	}
}

func newCategoryReport() CategoryReport {
	return CategoryReport{
		Installed: []string{},
		Skipped:   []string{},
		Failed:    []Failure{},
	}
}

func (c *CategoryReport) install(id string) {
	c.Installed = append(c.Installed, id)
}

func (c *CategoryReport) skip(id string) {
	c.Skipped = append(c.Skipped, id)
}

func (c *CategoryReport) fail(id string, err error) {
	c.Failed = append(c.Failed, Failure{ID: id, Error: err.Error(), Kind: ClassifyFailure(err)})
}

// Total returns how many items landed in any bucket.
func (c CategoryReport) Total() int {
	return len(c.Installed) + len(c.Skipped) + len(c.Failed)
}

// Failures returns every failure, repositories first.
func (r *Report) Failures() []Failure {
	out := make([]Failure, 0, len(r.Repos.Failed)+len(r.Addons.Failed))
	out = append(out, r.Repos.Failed...)
	return append(out, r.Addons.Failed...)
}

// FirstFailures returns at most n failures, repositories first.
func (r *Report) FirstFailures(n int) []Failure {
	all := r.Failures()
	if len(all) > n {
		return all[:n]
	}
	return all
}

// HasHardFailures reports whether any item failed for a reason other than
// user cancellation.
func (r *Report) HasHardFailures() bool {
	for _, f := range r.Failures() {
		if f.Kind != FailureCancelled {
			return true
		}
	}
	return false
}

// Cancelled reports whether either phase was cut short by the user.
func (r *Report) Cancelled() bool {
	for _, f := range r.Failures() {
		if f.Kind == FailureCancelled {
			return true
		}
	}
	return false
}
