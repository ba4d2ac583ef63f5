package idgen

// Generator produces unique string ids.
type Generator interface {
	Generate() (string, error)
}
