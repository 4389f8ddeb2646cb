package aggregates

type WriteTxOwnership string

// WriteTxOwnedByAggregate: the aggregate opens and commits its own transaction; callers never
// pass one in.
const WriteTxOwnedByAggregate WriteTxOwnership = "aggregate_owned"

type ReadPolicy string

// ReadPolicyInvariantScoped: an aggregate reads only the rows its invariants depend on.
// Listing and reporting reads stay on the table repos.
const ReadPolicyInvariantScoped ReadPolicy = "invariant_scoped_reads"

// Contract is the declared write boundary of an aggregate. Tests assert against it.
type Contract struct {
	Name             string
	WriteTxOwnership WriteTxOwnership
	ReadPolicy       ReadPolicy
	Notes            string
}

type Aggregate interface {
	Contract() Contract
}

func (c Contract) RequiresAggregateOwnedTx() bool {
	return c.WriteTxOwnership == WriteTxOwnedByAggregate
}
