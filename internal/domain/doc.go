// Package domain contains the core business entities and domain logic of
// the application: the timed record shared by the four self-report domains
// (guided exercise, sleep, stress, mood), its ratings and extension
// payloads, daily rollup rows, and the deterministic scoring formulas in
// the scoring sub-package. It is independent of any specific infrastructure
// or delivery mechanism.
package domain
