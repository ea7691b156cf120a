// Package report renders search progress for people and machines: console
// banners and match blocks, a run summary in YAML or JSON, and an optional
// Redis list that collects matches for other processes.
package report
