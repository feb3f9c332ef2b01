package soup

import "github.com/leapstack-labs/alchemy/pkg/lambda"

// ReactionError classifies a reaction attempt that did not change the soup.
type ReactionError int

// Reaction outcomes. Only NotEnoughExpressions stops a simulation.
const (
	// ExceedsReductionLimit means the product did not normalize within the
	// step limit.
	ExceedsReductionLimit ReactionError = iota + 1
	// ExceedsDepthLimit means an intermediate reduct grew past the depth limit.
	ExceedsDepthLimit
	// NotEnoughExpressions means the soup has fewer than two members.
	NotEnoughExpressions
	// IsIdentity means the product is λx.x.
	IsIdentity
	// IsParent means the product equals the enzyme or the substrate.
	IsParent
	// HasFreeVariables means the product references a free variable that
	// neither reactant has.
	HasFreeVariables
)

// NumReactionErrors is the number of ReactionError kinds.
const NumReactionErrors = int(HasFreeVariables)

// ReactionErrors returns every kind in declaration order.
func ReactionErrors() []ReactionError {
	out := make([]ReactionError, 0, NumReactionErrors)
	for k := ExceedsReductionLimit; k <= HasFreeVariables; k++ {
		out = append(out, k)
	}
	return out
}

// String returns the snake_case name used in logs, metrics and stored polls.
func (e ReactionError) String() string {
	switch e {
	case ExceedsReductionLimit:
		return "exceeds_reduction_limit"
	case ExceedsDepthLimit:
		return "exceeds_depth_limit"
	case NotEnoughExpressions:
		return "not_enough_expressions"
	case IsIdentity:
		return "is_identity"
	case IsParent:
		return "is_parent"
	case HasFreeVariables:
		return "has_free_variables"
	default:
		return "unknown"
	}
}

func (e ReactionError) Error() string {
	switch e {
	case ExceedsReductionLimit:
		return "reaction exceeds reduction limit"
	case ExceedsDepthLimit:
		return "reaction exceeds depth limit"
	case NotEnoughExpressions:
		return "not enough expressions to react"
	case IsIdentity:
		return "product is the identity"
	case IsParent:
		return "product equals a reactant"
	case HasFreeVariables:
		return "product has new free variables"
	default:
		return "unknown reaction error"
	}
}

// Reaction records one collision.
type Reaction struct {
	// Enzyme and Substrate are the sampled members; the enzyme is applied
	// to the substrate.
	Enzyme    *lambda.Term
	Substrate *lambda.Term
	// EnzymeIndex and SubstrateIndex are their positions in the soup.
	EnzymeIndex    int
	SubstrateIndex int
	// Product is the normal form, nil when reduction failed.
	Product *lambda.Term
	// Steps is the number of beta steps taken.
	Steps int
}

// OutcomeName returns "productive" for a nil error and the kind name
// otherwise.
func OutcomeName(err error) string {
	if err == nil {
		return "productive"
	}
	if kind, ok := err.(ReactionError); ok {
		return kind.String()
	}
	return "error"
}
