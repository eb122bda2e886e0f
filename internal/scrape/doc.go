// Package scrape defines the domain model shared by the scraping engine:
// records, fetch configuration, run results, the source and sink contracts,
// and the error kinds that flow between the fetch client, sources, the
// orchestrator and the scheduler.
package scrape
