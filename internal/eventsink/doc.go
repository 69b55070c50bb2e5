// Package eventsink forwards lifecycle events to external systems.
// This package is internal and should not be imported by external projects.
package eventsink
