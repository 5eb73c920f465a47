package cleaner

import (
	"invoice-insights-service/internal/models"
	"invoice-insights-service/pkg/logger"
)

// Pipeline runs the rule passes in a fixed order and aggregates their
// reports. It performs no corrective logic of its own: each rule only sees
// the evolving table, never another rule's report.
//
// The order is deliberate: references and dates are repaired first, day
// counts are recomputed from the repaired dates' source text, amounts are
// clipped, and whatever is still missing is filled last. Each rule tolerates
// input the later rules have not touched yet.
type Pipeline struct {
	rules  []Rule
	logger logger.Logger
}

// NewPipeline creates a pipeline with the standard rule order
func NewPipeline() *Pipeline {
	return &Pipeline{
		rules: []Rule{
			&ReferenceRule{},
			&DateRule{},
			&DaysRule{},
			&ClipRule{},
			&FillRule{},
		},
		logger: logger.GetGlobalLogger().WithComponent("cleaner"),
	}
}

// Rules returns the rules in execution order
func (p *Pipeline) Rules() []Rule {
	return p.rules
}

// Run threads the table through every rule and returns the cleaned table
// along with the aggregated issue report.
func (p *Pipeline) Run(table *models.Table) (*models.Table, *IssueReport) {
	p.logger.WithFields(logger.Fields{
		"rows":  table.Len(),
		"rules": len(p.rules),
	}).Info("Starting cleaning pipeline")

	tracker := logger.NewProgressTracker("clean_invoices", len(p.rules), p.logger)
	report := NewIssueReport()

	current := table
	for _, rule := range p.rules {
		next, ruleReport := rule.Apply(current)
		report.Add(ruleReport)

		p.logger.WithFields(logger.Fields{
			"rule":    rule.Name(),
			"flagged": ruleReport.Len(),
		}).Debug("Rule pass completed")

		tracker.Step(rule.Name())
		current = next
	}

	tracker.Complete()

	p.logger.WithFields(logger.Fields{
		"rows":          current.Len(),
		"total_flagged": report.TotalFlagged(),
	}).Info("Cleaning pipeline completed")

	return current, report
}
