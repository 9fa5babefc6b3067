package mint

import (
	"context"
	"encoding/base64"
	"errors"
	"math/big"
	"sync"
)

var ErrUnsolvable = errors.New("mint: not enough problems to reach the required solutions")

// Proof renders counter the way the browser worker does: the minimal
// big-endian bytes of the number (a single zero byte for 0), standard base64.
func Proof(counter uint64) string {
	b := new(big.Int).SetUint64(counter).Bytes()
	if len(b) == 0 {
		b = []byte{0}
	}
	return base64.StdEncoding.EncodeToString(b)
}

// Solve searches proofs for problem until one reaches difficulty.
func Solve(ctx context.Context, problem string, difficulty uint8) (string, error) {
	for counter := uint64(0); ; counter++ {
		if counter&0xfff == 0 {
			if err := ctx.Err(); err != nil {
				return "", err
			}
		}
		candidate := problem + ":" + Proof(counter)
		if HasWork(candidate, difficulty) {
			return candidate, nil
		}
	}
}

// SolveChallenge works on all problems concurrently and returns as soon as
// SolutionsRequire of them are solved.
func SolveChallenge(ctx context.Context, ch Challenge) ([]string, error) {
	need := int(ch.SolutionsRequire)
	if need < 1 {
		need = 1
	}
	if len(ch.Problems) < need {
		return nil, ErrUnsolvable
	}

	work, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu        sync.Mutex
		solutions []string
		wg        sync.WaitGroup
	)
	for _, p := range ch.Problems {
		wg.Add(1)
		go func(problem string) {
			defer wg.Done()
			sol, err := Solve(work, problem, ch.Difficulty)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if len(solutions) < need {
				solutions = append(solutions, sol)
				if len(solutions) == need {
					cancel()
				}
			}
		}(p)
	}
	wg.Wait()

	if len(solutions) < need {
		return nil, ctx.Err()
	}
	return solutions, nil
}
