package breaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var benchSettings = Settings{
	FailureThreshold: 5,
	SuccessThreshold: 2,
	RecoveryTimeout:  30 * time.Second,
}

func BenchmarkBreaker_Do_Success(b *testing.B) {
	ctx := context.Background()
	br, _ := New("bench", benchSettings)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		br.Do(ctx, func(ctx context.Context) error {
			return nil
		})
	}
}

func BenchmarkBreaker_Do_Open(b *testing.B) {
	ctx := context.Background()
	br, _ := New("bench", Settings{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		RecoveryTimeout:  time.Hour,
	})

	br.Do(ctx, func(ctx context.Context) error {
		return errors.New("trip")
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		br.Do(ctx, func(ctx context.Context) error {
			return nil
		})
	}
}

func BenchmarkBreaker_Do_Parallel(b *testing.B) {
	ctx := context.Background()
	br, _ := New("bench", benchSettings)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			br.Do(ctx, func(ctx context.Context) error {
				return nil
			})
		}
	})
}

func BenchmarkBreaker_State(b *testing.B) {
	br, _ := New("bench", benchSettings)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		br.State()
	}
}
