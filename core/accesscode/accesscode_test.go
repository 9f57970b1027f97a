package accesscode

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
)

// reservingChecker claims every code it is asked about, like a unique index would on insert.
type reservingChecker struct {
	mu    sync.Mutex
	codes map[string]bool
}

func (c *reservingChecker) AccessCodeTaken(_ context.Context, code string, _ ...core.DBExecutor) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.codes[code] {
		return true, nil
	}
	c.codes[code] = true
	return false, nil
}

type staticChecker struct {
	taken bool
	err   error
	calls int
}

func (c *staticChecker) AccessCodeTaken(context.Context, string, ...core.DBExecutor) (bool, error) {
	c.calls++
	return c.taken, c.err
}

func TestGenerator_Generate(t *testing.T) {
	gen := NewGenerator(&staticChecker{}, 0, 0)
	for i := 0; i < 500; i++ {
		code, err := gen.Generate()
		require.NoError(t, err)
		assert.Len(t, code, DefaultLength)
		assert.True(t, Valid(code, DefaultLength), "code %q uses symbols outside the alphabet", code)
		assert.False(t, strings.ContainsAny(code, "0O1IL"), "code %q has a confusable symbol", code)
	}
}

func TestAlphabet(t *testing.T) {
	assert.Len(t, Alphabet, 31)
	for _, c := range "0O1IL" {
		assert.NotContains(t, Alphabet, string(c))
	}
	seen := make(map[rune]bool)
	for _, c := range Alphabet {
		assert.False(t, seen[c], "duplicate symbol %q", c)
		seen[c] = true
	}
}

func TestGenerator_GenerateUnique(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	tests := []struct {
		name      string
		checker   *staticChecker
		wantErr   error
		wantCalls int
	}{
		{name: "first code free", checker: &staticChecker{}, wantCalls: 1},
		{name: "always taken", checker: &staticChecker{taken: true}, wantErr: ErrExhaustedRetries, wantCalls: 4},
		{name: "checker failure", checker: &staticChecker{err: boom}, wantErr: boom, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := NewGenerator(tt.checker, 6, 4)
			code, err := gen.GenerateUnique(ctx)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				assert.Empty(t, code)
			} else {
				assert.NoError(t, err)
				assert.Len(t, code, 6)
			}
			assert.Equal(t, tt.wantCalls, tt.checker.calls)
		})
	}
}

func TestGenerator_GenerateUnique_exhaustedKind(t *testing.T) {
	gen := NewGenerator(&staticChecker{taken: true}, 6, 2)
	_, err := gen.GenerateUnique(context.Background())
	assert.True(t, core.IsKind(err, core.KindExhaustedRetries))
}

func TestGenerator_GenerateUnique_concurrent(t *testing.T) {
	const n = 1000
	checker := &reservingChecker{codes: make(map[string]bool)}
	gen := NewGenerator(checker, 6, 10)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = make(map[string]bool, n)
		errs  []error
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			code, err := gen.GenerateUnique(context.Background())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			codes[code] = true
		}()
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Len(t, codes, n)
}

func TestGenerate_randomSource(t *testing.T) {
	_, err := generate(bytes.NewReader(nil), 6)
	assert.Error(t, err)
}

func TestValid(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{code: "ABC234", want: true},
		{code: "abc234", want: false},
		{code: "ABC23", want: false},
		{code: "ABCO23", want: false},
		{code: "ABC1234", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.code, 6))
		})
	}
}
