package ledger

import "errors"

// Code classifies a domain rejection so callers can react without
// parsing messages.
type Code string

// Domain error codes.
const (
	// CodeForbidden means the caller's role does not permit the operation.
	CodeForbidden Code = "FORBIDDEN"
	// CodeInvalidAmount means a non-positive point amount was supplied.
	CodeInvalidAmount Code = "INVALID_AMOUNT"
	// CodeNoActiveSemester means no semester is currently active.
	CodeNoActiveSemester Code = "NO_ACTIVE_SEMESTER"
	// CodeAmbiguousSemester means more than one semester is active, a
	// data-integrity condition the engine refuses to resolve silently.
	CodeAmbiguousSemester Code = "AMBIGUOUS_ACTIVE_SEMESTER"
	// CodeProfileNotFound means the caller lacks the expected profile.
	CodeProfileNotFound Code = "PROFILE_NOT_FOUND"
	// CodeBudgetNotFound means the teacher has no budget for the semester.
	CodeBudgetNotFound Code = "BUDGET_NOT_FOUND"
	// CodeBudgetExceeded means the award would overspend the budget.
	CodeBudgetExceeded Code = "BUDGET_EXCEEDED"
	// CodeBonusInactive means the bonus cannot currently be redeemed.
	CodeBonusInactive Code = "BONUS_INACTIVE"
	// CodeInsufficientBalance means the student cannot cover the price.
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	// CodeUsageLimitReached means the per-student redemption limit is hit.
	CodeUsageLimitReached Code = "USAGE_LIMIT_REACHED"
	// CodeOverFunding means a reservation would exceed the bonus price.
	CodeOverFunding Code = "OVER_FUNDING"
	// CodePurchaseNotOpen means the group purchase no longer accepts
	// new or amended contributions.
	CodePurchaseNotOpen Code = "PURCHASE_NOT_OPEN"
	// CodePurchaseNotFound means no active group purchase exists.
	CodePurchaseNotFound Code = "PURCHASE_NOT_FOUND"
	// CodeContributionNotFound means the caller has no stake in the purchase.
	CodeContributionNotFound Code = "CONTRIBUTION_NOT_FOUND"
	// CodeWithdrawBlocked means other contributors prevent withdrawal.
	CodeWithdrawBlocked Code = "WITHDRAW_BLOCKED"
	// CodeTeacherNotAssigned means the chosen teacher cannot confirm the bonus.
	CodeTeacherNotAssigned Code = "TEACHER_NOT_ASSIGNED"
	// CodeRequestPending means an undecided request for the same bonus exists.
	CodeRequestPending Code = "REQUEST_PENDING"
	// CodeRequestDecided means the request has already been decided.
	CodeRequestDecided Code = "REQUEST_DECIDED"
	// CodeNotFound means a referenced entity does not exist.
	CodeNotFound Code = "NOT_FOUND"
)

// Error is a typed domain rejection with a human-readable message.
// Handlers render the message verbatim; the code maps to a distinct
// business condition.
type Error struct {
	Code    Code
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string { return e.Message }

// newError builds a domain error.
func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// AsError unwraps err into a domain error, if it is one.
func AsError(err error) (*Error, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// IsCode reports whether err is a domain error with the given code.
func IsCode(err error, code Code) bool {
	domainErr, ok := AsError(err)
	return ok && domainErr.Code == code
}
