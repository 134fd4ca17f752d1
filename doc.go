// Package main provides the entry point of quill, the settings service of a
// blog. It serves the settings through a REST api built on fiber and keeps
// them with gorm, recording every change in an append-only history that
// allows rolling any setting back to an earlier value.
package main
