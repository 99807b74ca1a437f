// Package handlers implements the mailgate HTTP endpoints.
package handlers
