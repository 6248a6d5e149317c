// Package provenance keeps a run history the same way genome.Genome and
// genome.Seed record theirs upstream: a stack of runp.RunParameters,
// newest first. gff3sync creates one Record per worker and logs its
// UUID at debug level; no Record is written into any output file.
package provenance

import (
	"github.com/google/uuid"
	"github.com/grendeloz/runp"
)

// Record is a provenance-bearing value: a stable UUID plus the stack
// of runs that have touched it.
type Record struct {
	UUID       string
	Provenance []runp.RunParameters
}

// New starts a fresh Record with a new UUID and a single provenance
// entry for the current run.
func New() Record {
	return Record{
		UUID:       uuid.New().String(),
		Provenance: []runp.RunParameters{runp.NewRunParameters()},
	}
}

// Add pushes a new RunParameters entry onto the front of r's
// Provenance, preserving the UUID.
func (r *Record) Add() {
	prov := runp.NewRunParameters()
	r.Provenance = append([]runp.RunParameters{prov}, r.Provenance...)
}

// Inherit starts a Record with a fresh UUID whose Provenance begins
// with an entry for the current run, followed by parent's history -
// the same lineage genome.Seed keeps back to its source genome.
func Inherit(parent Record) Record {
	r := Record{UUID: uuid.New().String(), Provenance: parent.Provenance}
	r.Add()
	return r
}
