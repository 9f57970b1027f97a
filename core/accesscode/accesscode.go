// Package accesscode issues the short shared codes students type to check in.
package accesscode

import (
	"context"
	"crypto/rand"
	"io"
	"math/big"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
)

// Alphabet holds uppercase letters and digits without the confusable 0, O, 1, I and L.
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	DefaultLength      = 6
	DefaultMaxAttempts = 10
)

var (
	ErrExhaustedRetries = core.NewError(core.KindExhaustedRetries, "could not generate a unique access code")

	alphabetSize = big.NewInt(int64(len(Alphabet)))
)

// Checker reports whether a code is already held by a non-deleted session.
type Checker interface {
	AccessCodeTaken(ctx context.Context, code string, exec ...core.DBExecutor) (bool, error)
}

type Generator struct {
	checker     Checker
	length      int
	maxAttempts int
	random      io.Reader
}

func NewGenerator(checker Checker, length, maxAttempts int) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Generator{
		checker:     checker,
		length:      length,
		maxAttempts: maxAttempts,
		random:      rand.Reader,
	}
}

// Generate draws a code, each character picked uniformly from Alphabet.
func (g *Generator) Generate() (string, error) {
	return generate(g.random, g.length)
}

// GenerateUnique returns the first generated code not held by any stored session.
// It gives up with ErrExhaustedRetries after maxAttempts collisions.
func (g *Generator) GenerateUnique(ctx context.Context, exec ...core.DBExecutor) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		code, err := g.Generate()
		if err != nil {
			return "", err
		}
		taken, err := g.checker.AccessCodeTaken(ctx, code, exec...)
		if err != nil {
			return "", errors.Wrap(err, "checker.AccessCodeTaken()")
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrExhaustedRetries
}

// MaxAttempts is the bound shared by callers retrying a code write that lost a race on the unique index.
func (g *Generator) MaxAttempts() int {
	return g.maxAttempts
}

func generate(random io.Reader, length int) (string, error) {
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(random, alphabetSize)
		if err != nil {
			return "", errors.Wrap(err, "rand.Int()")
		}
		code[i] = Alphabet[n.Int64()]
	}
	return string(code), nil
}

// Valid reports whether code has the given length and only uses Alphabet symbols.
func Valid(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !isSymbol(code[i]) {
			return false
		}
	}
	return true
}

func isSymbol(c byte) bool {
	for i := 0; i < len(Alphabet); i++ {
		if Alphabet[i] == c {
			return true
		}
	}
	return false
}

var (
	accessCodeTag  = "accesscode"
	accessCodeText = "{0} is not a valid access code"
)

func init() {
	_ = core.Validate.RegisterValidation(accessCodeTag, func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		return code != "" && Valid(code, len(code))
	})
	core.RegisterCustomTranslation(core.Validate, core.Translator, accessCodeTag, accessCodeText)
}
