package models

import "time"

// TableRef addresses one physical table in the source store.
type TableRef struct {
	Database string
	Table    string
}

// TableDescriptor is a parsed option table name.
type TableDescriptor struct {
	Database string
	Table    string
	Symbol   string
	Expiry   time.Time
}

// WorkItem is one logical option contract to process. Tables lists every
// physical split of the contract; their rows are unioned before
// reconciliation.
type WorkItem struct {
	Symbol string
	Expiry time.Time
	Tables []TableRef
}

// OptionGroup collects the work items of one contract-month database. Expiry
// is the group's contract month, Database the surviving name after split
// databases merge.
type OptionGroup struct {
	Database string
	Expiry   time.Time
	Items    []WorkItem
}

// IngestionPlan is the ordered output of the planner: stock tables first,
// then option groups oldest contract month first.
type IngestionPlan struct {
	Stocks  []TableRef
	Options []OptionGroup
}

// TotalOptionItems counts the logical work items across all option groups.
func (p *IngestionPlan) TotalOptionItems() int {
	n := 0
	for _, g := range p.Options {
		n += len(g.Items)
	}
	return n
}
