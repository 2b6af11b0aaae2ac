// Package importer implements utilities used to create IPFS DAGs from files
// and readers.
package importer

import (
	"context"

	"github.com/ipfs/kubo-core/importer/balanced"
	"github.com/ipfs/kubo-core/importer/chunk"
	h "github.com/ipfs/kubo-core/importer/helpers"
	"github.com/ipfs/kubo-core/importer/trickle"

	format "github.com/ipfs/go-ipld-format"
)

// BuildDagFromReader creates a DAG given a DAGService and a Splitter
// implementation (Splitters are io.Readers), using a Balanced layout.
func BuildDagFromReader(ctx context.Context, ds format.DAGService, spl chunk.Splitter) (format.Node, error) {
	dbp := h.DagBuilderParams{
		Dagserv:  ds,
		Maxlinks: h.DefaultLinksPerBlock,
	}
	db, err := dbp.New(ctx, spl)
	if err != nil {
		return nil, err
	}
	return balanced.Layout(db)
}

// BuildTrickleDagFromReader creates a DAG given a DAGService and a Splitter
// implementation (Splitters are io.Readers), using a Trickle Layout.
func BuildTrickleDagFromReader(ctx context.Context, ds format.DAGService, spl chunk.Splitter) (format.Node, error) {
	dbp := h.DagBuilderParams{
		Dagserv:  ds,
		Maxlinks: h.DefaultLinksPerBlock,
	}
	db, err := dbp.New(ctx, spl)
	if err != nil {
		return nil, err
	}
	return trickle.Layout(db)
}

// Import builds a DAG from spl with the given parameters, choosing the
// trickle layout when useTrickle is set.
func Import(ctx context.Context, params h.DagBuilderParams, spl chunk.Splitter, useTrickle bool) (format.Node, error) {
	db, err := params.New(ctx, spl)
	if err != nil {
		return nil, err
	}
	if useTrickle {
		return trickle.Layout(db)
	}
	return balanced.Layout(db)
}
