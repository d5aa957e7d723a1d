package indexer

import (
	"context"
	"fmt"
	"testing"
)

func BenchmarkIndex(b *testing.B) {
	root := b.TempDir()
	for i := 0; i < 200; i++ {
		createTestFile(b, root, fmt.Sprintf("pkg%d/file%d.go", i%10, i), fmt.Sprintf(`package pkg%d

import "strings"

// Upper%d upper-cases s.
func Upper%d(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s)
}

type Thing%d struct {
	Name string
}

func (t *Thing%d) Label() string { return Upper%d(t.Name) }
`, i%10, i, i, i, i, i))
	}

	idx := New()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := idx.Index(ctx, root, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkIndex_Snapshot(b *testing.B) {
	root := b.TempDir()
	for i := 0; i < 200; i++ {
		createTestFile(b, root, fmt.Sprintf("src/mod%d.ts", i), fmt.Sprintf(
			"import { helper } from './mod%d';\nexport function run%d(x: number): number {\n  return helper(x) + %d;\n}\n",
			(i+1)%200, i, i))
	}

	idx := New(WithSnapshotStore(&memStore{}))
	ctx := context.Background()
	if _, err := idx.Index(ctx, root, nil); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := idx.Index(ctx, root, nil); err != nil {
			b.Fatal(err)
		}
	}
}
