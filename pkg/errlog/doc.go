// Package errlog persists failed requests to a flat text log, one numbered record per failure.
package errlog
