// Package aggregates implements the domain aggregate contracts on top of the table repos.
// Each write runs in one transaction owned by the aggregate.
package aggregates
