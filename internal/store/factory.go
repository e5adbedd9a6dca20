package store

import (
	"basegraph.app/insight/core/db"
)

// Stores bundles the per-entity stores over one DBTX. Built over the
// pool for plain reads and over a transaction for multi-row writes.
type Stores struct {
	dbtx db.DBTX
}

func NewStores(dbtx db.DBTX) *Stores {
	return &Stores{dbtx: dbtx}
}

func (s *Stores) Documents() DocumentStore {
	return newDocumentStore(s.dbtx)
}

func (s *Stores) Tasks() TaskStore {
	return newTaskStore(s.dbtx)
}

func (s *Stores) Intermediates() IntermediateStore {
	return newIntermediateStore(s.dbtx)
}

func (s *Stores) Profiles() ProfileStore {
	return newProfileStore(s.dbtx)
}

func (s *Stores) Results() ResultStore {
	return newResultStore(s.dbtx)
}

func (s *Stores) Metrics() MetricStore {
	return newMetricStore(s.dbtx)
}

func (s *Stores) Quality() QualityStore {
	return newQualityStore(s.dbtx)
}
