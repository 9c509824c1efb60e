// Package directory exposes the three-level administrative hierarchy reads
// consumed by the onboarding gate.
package directory

import "context"

// Directory lists location hierarchy values top-down.
// The onboarding gate is its only consumer and uses exactly these three reads.
type Directory interface {
	Districts(ctx context.Context) ([]string, error)
	Blocks(ctx context.Context, district string) ([]string, error)
	Villages(ctx context.Context, block string) ([]string, error)
}
