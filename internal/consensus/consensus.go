// Package consensus holds fork-choice rules. The only rule is longest valid
// chain by block count.
package consensus

type Verdict int

const (
	NotLonger Verdict = iota
	Invalid
	Adopted
)

func (v Verdict) String() string {
	switch v {
	case Adopted:
		return "adopted"
	case Invalid:
		return "invalid"
	default:
		return "not-longer"
	}
}
