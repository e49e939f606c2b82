// Package testutil provides deterministic collaborators for script host tests.
package testutil
