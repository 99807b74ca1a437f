// Package sanitizer derives plain-text email bodies from HTML.
package sanitizer
