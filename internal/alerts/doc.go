// Package alerts provides the business boundary for coinwatch's price alerts.
// It defines the Service (snapshot dedup, lifecycle, async notification
// dispatch), Engine (pure price evaluation), Store (canonical state with
// versioned persistence behind the KV port), and domain models.
package alerts
