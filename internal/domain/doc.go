package domain

// Package domain contains the core concepts of the conversion service: jobs, results,
// strategies and the errors shared between layers.
// Keep this package free of transport (HTTP) and infrastructure (Chrome/Redis) concerns.
