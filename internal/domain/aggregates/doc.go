// Package aggregates defines the write boundaries of the engagement domain and the error
// taxonomy every aggregate write reports through.
package aggregates
