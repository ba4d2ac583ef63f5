package idgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/nrednav/cuid2"
	"github.com/segmentio/ksuid"
)

// Record id strategies for chats and invitations. Message ids are always
// snowflakes because history paging relies on their order.
const (
	StrategyULID   = "ulid"
	StrategyKSUID  = "ksuid"
	StrategyCUID2  = "cuid2"
	StrategyNanoID = "nanoid"
	StrategyUUID   = "uuid"
)

const (
	DefaultNanoIDSize     = 21
	DefaultNanoIDAlphabet = "_-0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	DefaultCUID2Length    = 24
)

type RecordOptions struct {
	Strategy       string
	NanoIDSize     int
	NanoIDAlphabet string
	CUID2Length    int
}

// NewRecordGenerator builds the generator named by opts.Strategy. An empty
// strategy means ULID.
func NewRecordGenerator(opts RecordOptions) (Generator, error) {
	switch strings.ToLower(opts.Strategy) {
	case "", StrategyULID:
		return NewULID(), nil
	case StrategyKSUID:
		return NewKSUID(), nil
	case StrategyUUID:
		return NewUUID(), nil
	case StrategyCUID2:
		length := opts.CUID2Length
		if length == 0 {
			length = DefaultCUID2Length
		}
		return NewCUID2(length)
	case StrategyNanoID:
		size, alphabet := opts.NanoIDSize, opts.NanoIDAlphabet
		if size == 0 {
			size = DefaultNanoIDSize
		}
		if alphabet == "" {
			alphabet = DefaultNanoIDAlphabet
		}
		return NewNanoID(size, alphabet)
	}
	return nil, fmt.Errorf("unknown id strategy %q", opts.Strategy)
}

// KSUID generates time-sortable 27 character ids.
type KSUID struct{}

func NewKSUID() *KSUID {
	return &KSUID{}
}

func (g *KSUID) Generate() (string, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate KSUID: %w", err)
	}
	return id.String(), nil
}

type UUID struct{}

func NewUUID() *UUID {
	return &UUID{}
}

func (g *UUID) Generate() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}
	return id.String(), nil
}

type CUID2 struct {
	generate func() string
}

// NewCUID2 creates a generator; length must be between 2 and 32.
func NewCUID2(length int) (*CUID2, error) {
	if length < 2 || length > 32 {
		return nil, fmt.Errorf("cuid2 length must be between 2 and 32, got %d", length)
	}
	gen, err := cuid2.Init(cuid2.WithLength(length))
	if err != nil {
		return nil, fmt.Errorf("failed to init CUID2 generator: %w", err)
	}
	return &CUID2{generate: gen}, nil
}

func (g *CUID2) Generate() (string, error) {
	return g.generate(), nil
}

type NanoID struct {
	size     int
	alphabet string
}

// NewNanoID creates a generator. size must be between 1 and 256 and the
// alphabet needs at least 2 characters.
func NewNanoID(size int, alphabet string) (*NanoID, error) {
	if size < 1 || size > 256 {
		return nil, fmt.Errorf("nanoid size must be between 1 and 256, got %d", size)
	}
	if len(alphabet) < 2 {
		return nil, fmt.Errorf("nanoid alphabet must have at least 2 characters, got %d", len(alphabet))
	}
	return &NanoID{size: size, alphabet: alphabet}, nil
}

func (g *NanoID) Generate() (string, error) {
	id, err := gonanoid.Generate(g.alphabet, g.size)
	if err != nil {
		return "", fmt.Errorf("failed to generate NanoID: %w", err)
	}
	return id, nil
}
