// Package model contains domain models/data structures.
// Keep it free of persistence and transport concerns.
package model
